package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role names seeded at installation. Roles are reference data; the set of
// permissions attached to each one is what administrators actually edit.
const (
	RoleAdmin        = "admin"
	RoleContentAdmin = "content_admin"
	RoleResident     = "resident"
)

// Permission codes checked by the permission middleware. Seeded alongside
// the roles; administrators grant and revoke them per role at runtime.
const (
	PermManageUsers      = "MANAGE_USERS"
	PermApproveUsers     = "APPROVE_USERS"
	PermManageProviders  = "MANAGE_PROVIDERS"
	PermApproveProviders = "APPROVE_PROVIDERS"
	PermManageCategories = "MANAGE_CATEGORIES"
	PermViewReports      = "VIEW_REPORTS"
	PermViewProviders    = "VIEW_PROVIDERS"
)

// Role mirrors the 'roles' table.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission mirrors the 'permissions' table. Code is the stable string
// identifier checked by the permission middleware; Module groups related
// codes for display.
type Permission struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

type RoleRepo struct{ db *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

// GetByID fetches a non-deleted role.
func (r *RoleRepo) GetByID(ctx context.Context, id string) (Role, error) {
	var role Role
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, is_system, created_at FROM roles WHERE id = ? AND deleted = 0 LIMIT 1",
		id).Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	return role, err
}

// GetByName fetches a non-deleted role by its unique name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, is_system, created_at FROM roles WHERE name = ? AND deleted = 0 LIMIT 1",
		name).Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	return role, err
}

// List returns all non-deleted roles ordered by name.
func (r *RoleRepo) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, is_system, created_at FROM roles WHERE deleted = 0 ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// ResolvePermissions flattens role_permissions -> permissions into the
// deduplicated set of permission codes granted to the role. Soft-deleted
// join rows and soft-deleted permissions are both excluded, so revoking
// a grant never requires touching the permission row itself.
func (r *RoleRepo) ResolvePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT p.code
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id AND p.deleted = 0
		 WHERE rp.role_id = ? AND rp.deleted = 0`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ListPermissions returns all grantable permissions ordered by module then code.
func (r *RoleRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, code, name, module FROM permissions WHERE deleted = 0 ORDER BY module, code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Module); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GrantPermission links a permission to a role. A previously revoked
// (soft-deleted) grant is revived instead of inserting a duplicate row.
func (r *RoleRepo) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE role_permissions SET deleted = 0 WHERE role_id = ? AND permission_id = ?",
		roleID, permissionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Revive matched an already-live row with RowsAffected 0, or no row
	// exists yet. Probe before inserting to keep the grant idempotent.
	var id string
	err = r.db.QueryRowContext(ctx,
		"SELECT id FROM role_permissions WHERE role_id = ? AND permission_id = ? LIMIT 1",
		roleID, permissionID).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO role_permissions (id, role_id, permission_id) VALUES (?,?,?)",
		uuid.NewString(), roleID, permissionID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1452") {
		// Foreign key failed; figure out which side is missing.
		if _, roleErr := r.GetByID(ctx, roleID); roleErr != nil {
			return ErrRoleNotFound
		}
		return ErrPermissionNotFound
	}
	return err
}

// RevokePermission soft-deletes the grant. Idempotent: revoking an absent
// grant is not an error.
func (r *RoleRepo) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE role_permissions SET deleted = 1 WHERE role_id = ? AND permission_id = ? AND deleted = 0",
		roleID, permissionID)
	return err
}
