package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Statuses shared by categories, providers and reviews. New directory
// content starts as pending until a content administrator approves it.
const (
	ContentStatusActive   = "active"
	ContentStatusPending  = "pending"
	ContentStatusRejected = "rejected"
)

// Category mirrors the 'service_categories' table.
type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	DisplayOrder int       `json:"display_order"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryCols = "id, name, description, icon, display_order, status, created_at, updated_at"

// Create inserts a category and populates the generated ID.
func (r *CategoryRepo) Create(ctx context.Context, c *Category, createdBy string) error {
	c.ID = uuid.NewString()
	if c.Status == "" {
		c.Status = ContentStatusActive
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_categories (id, name, description, icon, display_order, status, created_by)
		 VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Description, c.Icon, c.DisplayOrder, c.Status, createdBy)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrConflict
	}
	return err
}

// GetByID fetches a non-deleted category.
func (r *CategoryRepo) GetByID(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx,
		"SELECT "+categoryCols+" FROM service_categories WHERE id = ? AND deleted = 0 LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.DisplayOrder, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

// List returns non-deleted categories in display order. When activeOnly is
// set, pending and rejected categories are filtered out (resident view).
func (r *CategoryRepo) List(ctx context.Context, activeOnly bool) ([]Category, error) {
	q := "SELECT " + categoryCols + " FROM service_categories WHERE deleted = 0"
	if activeOnly {
		q += " AND status = '" + ContentStatusActive + "'"
	}
	q += " ORDER BY display_order, name"

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.DisplayOrder,
			&c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields of a category.
func (r *CategoryRepo) Update(ctx context.Context, c Category, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_categories
		 SET name = ?, description = ?, icon = ?, display_order = ?, status = ?,
		     updated_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`,
		c.Name, c.Description, c.Icon, c.DisplayOrder, c.Status, updatedBy, c.ID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// SoftDelete marks a category as deleted. Providers keep their category_id;
// reads join against non-deleted categories so orphans simply stop showing.
func (r *CategoryRepo) SoftDelete(ctx context.Context, id, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE service_categories SET deleted = 1, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
