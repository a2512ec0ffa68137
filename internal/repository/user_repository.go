package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User statuses. A user is created as pending and only an administrative
// action moves it to active or inactive.
const (
	UserStatusPending  = "pending"
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User mirrors the 'users' table. RoleID references the roles table;
// Deleted implements the soft-delete convention.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	NationalID   string    `json:"national_id,omitempty"`
	Unit         string    `json:"unit"`
	ResidentType string    `json:"resident_type"`
	RoleID       string    `json:"role_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Deleted      bool      `json:"-"`
}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrNationalIDExists = errors.New("national id already exists")
)

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userCols = "id, email, password_hash, full_name, phone, national_id, unit, resident_type, role_id, status, created_at, updated_at"

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
		&u.NationalID, &u.Unit, &u.ResidentType, &u.RoleID, &u.Status,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a new user in pending status and returns its generated ID.
// Email and national id uniqueness are checked first so callers get a
// precise sentinel instead of a bare duplicate-key error.
func (r *UserRepo) Create(ctx context.Context, u *User) (string, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	var existingEmail, existingNID string
	err := r.db.QueryRowContext(ctx,
		"SELECT email, national_id FROM users WHERE (email = ? OR national_id = ?) AND deleted = 0 LIMIT 1",
		u.Email, u.NationalID).Scan(&existingEmail, &existingNID)
	switch {
	case err == nil:
		if existingEmail == u.Email {
			return "", ErrEmailExists
		}
		return "", ErrNationalIDExists
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}

	u.ID = uuid.NewString()
	u.Status = UserStatusPending
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, phone, national_id, unit, resident_type, role_id, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.NationalID,
		u.Unit, u.ResidentType, u.RoleID, u.Status)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return u.ID, nil
}

// GetByEmail fetches a non-deleted user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email = ? AND deleted = 0 LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id = ? AND deleted = 0 LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// List returns non-deleted users, optionally filtered by status, newest first.
func (r *UserRepo) List(ctx context.Context, status string) ([]User, error) {
	q := "SELECT " + userCols + " FROM users WHERE deleted = 0"
	args := []any{}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
			&u.NationalID, &u.Unit, &u.ResidentType, &u.RoleID, &u.Status,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateStatus moves a user between pending/active/inactive.
// Returns ErrUserNotFound when no row is affected.
func (r *UserRepo) UpdateStatus(ctx context.Context, id, status, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET status = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		status, updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateRole assigns a different role to the user.
func (r *UserRepo) UpdateRole(ctx context.Context, id, roleID, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET role_id = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		roleID, updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SoftDelete marks the user as deleted. Rows are never physically removed.
func (r *UserRepo) SoftDelete(ctx context.Context, id, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET deleted = 1, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
