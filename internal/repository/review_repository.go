package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Review mirrors the 'provider_reviews' table. One review per
// (user, provider); a second submission updates the first.
type Review struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"` // joined from users on reads
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var ErrReviewNotFound = errors.New("review not found")

type ReviewRepo struct{ db *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// Upsert creates the caller's review for a provider, or rewrites it when
// one already exists. Returns the review ID.
func (r *ReviewRepo) Upsert(ctx context.Context, rev *Review) (string, error) {
	var existing string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM provider_reviews WHERE provider_id = ? AND user_id = ? AND deleted = 0 LIMIT 1",
		rev.ProviderID, rev.UserID).Scan(&existing)
	switch {
	case err == nil:
		_, err = r.db.ExecContext(ctx,
			`UPDATE provider_reviews SET rating = ?, comment = ?, status = ?,
			        updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			rev.Rating, rev.Comment, rev.Status, rev.UserID, existing)
		rev.ID = existing
		return existing, err
	case errors.Is(err, sql.ErrNoRows):
		rev.ID = uuid.NewString()
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO provider_reviews (id, provider_id, user_id, rating, comment, status, created_by)
			 VALUES (?,?,?,?,?,?,?)`,
			rev.ID, rev.ProviderID, rev.UserID, rev.Rating, rev.Comment, rev.Status, rev.UserID)
		return rev.ID, err
	default:
		return "", err
	}
}

// ListByProvider returns a provider's reviews, newest first. When
// activeOnly is set, pending and rejected reviews are hidden.
func (r *ReviewRepo) ListByProvider(ctx context.Context, providerID string, activeOnly bool) ([]Review, error) {
	q := `SELECT v.id, v.provider_id, v.user_id, u.full_name, v.rating, v.comment, v.status, v.created_at, v.updated_at
	      FROM provider_reviews v
	      JOIN users u ON u.id = v.user_id
	      WHERE v.provider_id = ? AND v.deleted = 0`
	args := []any{providerID}
	if activeOnly {
		q += " AND v.status = ?"
		args = append(args, ContentStatusActive)
	}
	q += " ORDER BY v.created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var v Review
		if err := rows.Scan(&v.ID, &v.ProviderID, &v.UserID, &v.UserName, &v.Rating,
			&v.Comment, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetByID fetches a non-deleted review.
func (r *ReviewRepo) GetByID(ctx context.Context, id string) (Review, error) {
	var v Review
	err := r.db.QueryRowContext(ctx,
		`SELECT v.id, v.provider_id, v.user_id, u.full_name, v.rating, v.comment, v.status, v.created_at, v.updated_at
		 FROM provider_reviews v JOIN users u ON u.id = v.user_id
		 WHERE v.id = ? AND v.deleted = 0 LIMIT 1`, id).
		Scan(&v.ID, &v.ProviderID, &v.UserID, &v.UserName, &v.Rating, &v.Comment,
			&v.Status, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrReviewNotFound
	}
	return v, err
}

// UpdateStatus moderates a review (approve/reject).
func (r *ReviewRepo) UpdateStatus(ctx context.Context, id, status, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE provider_reviews SET status = ?, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		status, updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// SoftDelete removes a review from view. Only the author or a moderator may
// call this; ownership is enforced at the handler layer.
func (r *ReviewRepo) SoftDelete(ctx context.Context, id, updatedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE provider_reviews SET deleted = 1, updated_by = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted = 0",
		updatedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReviewNotFound
	}
	return nil
}
