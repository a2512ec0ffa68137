package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider mirrors the 'service_providers' table. RatingAvg and ReviewCount
// are denormalized aggregates maintained by the review repository.
type Provider struct {
	ID           string    `json:"id"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"` // joined from service_categories on reads
	BusinessName string    `json:"business_name"`
	ContactName  string    `json:"contact_name"`
	Phone        string    `json:"phone"`
	WhatsApp     string    `json:"whatsapp"`
	Email        string    `json:"email"`
	Address      string    `json:"address"`
	Website      string    `json:"website"`
	Description  string    `json:"description"`
	RatingAvg    float64   `json:"rating_avg"`
	ReviewCount  int       `json:"review_count"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var ErrProviderNotFound = errors.New("provider not found")

type ProviderRepo struct{ db *sql.DB }

func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

const providerSelect = `SELECT p.id, p.category_id, c.name, p.business_name, p.contact_name,
       p.phone, p.whatsapp, p.email, p.address, p.website, p.description,
       p.rating_avg, p.review_count, p.status, p.created_at, p.updated_at
  FROM service_providers p
  JOIN service_categories c ON c.id = p.category_id AND c.deleted = 0`

func scanProvider(sc interface{ Scan(...any) error }) (Provider, error) {
	var p Provider
	err := sc.Scan(&p.ID, &p.CategoryID, &p.CategoryName, &p.BusinessName, &p.ContactName,
		&p.Phone, &p.WhatsApp, &p.Email, &p.Address, &p.Website, &p.Description,
		&p.RatingAvg, &p.ReviewCount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a provider and populates the generated ID.
func (r *ProviderRepo) Create(ctx context.Context, p *Provider, createdBy string) error {
	p.ID = uuid.NewString()
	if p.Status == "" {
		p.Status = ContentStatusPending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_providers
		   (id, category_id, business_name, contact_name, phone, whatsapp, email, address, website, description, status, created_by)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CategoryID, p.BusinessName, p.ContactName, p.Phone, p.WhatsApp,
		p.Email, p.Address, p.Website, p.Description, p.Status, createdBy)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1452") {
		return ErrCategoryNotFound // foreign key on category_id
	}
	return err
}

// GetByID fetches a non-deleted provider with its category name.
func (r *ProviderRepo) GetByID(ctx context.Context, id string) (Provider, error) {
	p, err := scanProvider(r.db.QueryRowContext(ctx,
		providerSelect+" WHERE p.id = ? AND p.deleted = 0 LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Provider{}, ErrProviderNotFound
	}
	return p, err
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	CategoryID string
	Status     string // empty = active only; "all" = every status
	Search     string // matches business name, case-insensitive
}

// List returns non-deleted providers ordered by business name. Residents
// browse with the default active-only view; administrators pass
// Status "all" or an explicit status to review pending submissions.
func (r *ProviderRepo) List(ctx context.Context, f ListFilter) ([]Provider, error) {
	q := providerSelect + " WHERE p.deleted = 0"
	args := []any{}
	switch f.Status {
	case "all":
	case "":
		q += " AND p.status = ?"
		args = append(args, ContentStatusActive)
	default:
		q += " AND p.status = ?"
		args = append(args, f.Status)
	}
	if f.CategoryID != "" {
		q += " AND p.category_id = ?"
		args = append(args, f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q += " AND p.business_name LIKE ?"
		args = append(args, "%"+s+"%")
	}
	q += " ORDER BY p.business_name"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields of a provider.
func (r *ProviderRepo) Update(ctx context.Context, p Provider, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_providers
		 SET category_id = ?, business_name = ?, contact_name = ?, phone = ?, whatsapp = ?,
		     email = ?, address = ?, website = ?, description = ?,
		     updated_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`,
		p.CategoryID, p.BusinessName, p.ContactName, p.Phone, p.WhatsApp,
		p.Email, p.Address, p.Website, p.Description, updatedBy, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// UpdateStatus approves or rejects a submission.
func (r *ProviderRepo) UpdateStatus(ctx context.Context, id, status, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE service_providers SET status = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		status, updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// SoftDelete marks a provider as deleted.
func (r *ProviderRepo) SoftDelete(ctx context.Context, id, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE service_providers SET deleted = 1, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// RefreshRating recomputes the denormalized rating aggregate from the
// provider's active, non-deleted reviews. Called after every review write.
func (r *ProviderRepo) RefreshRating(ctx context.Context, providerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE service_providers p
		 SET p.rating_avg = COALESCE((
		       SELECT AVG(v.rating) FROM provider_reviews v
		       WHERE v.provider_id = p.id AND v.deleted = 0 AND v.status = ?), 0),
		     p.review_count = (
		       SELECT COUNT(*) FROM provider_reviews v
		       WHERE v.provider_id = p.id AND v.deleted = 0 AND v.status = ?)
		 WHERE p.id = ?`,
		ContentStatusActive, ContentStatusActive, providerID)
	return err
}
