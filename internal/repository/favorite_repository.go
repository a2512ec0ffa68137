package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Favorite links a user to a bookmarked provider.
type Favorite struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	Provider   Provider  `json:"provider"` // populated by ListByUser
}

type FavoriteRepo struct{ db *sql.DB }

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{db: db} }

// Toggle bookmarks the provider for the user, or removes the bookmark when
// one already exists. Returns true when the provider ends up favorited.
func (r *FavoriteRepo) Toggle(ctx context.Context, userID, providerID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM provider_favorites WHERE user_id = ? AND provider_id = ? AND deleted = 0 LIMIT 1",
		userID, providerID).Scan(&id)
	switch {
	case err == nil:
		_, err = r.db.ExecContext(ctx,
			"UPDATE provider_favorites SET deleted = 1 WHERE id = ?", id)
		return false, err
	case errors.Is(err, sql.ErrNoRows):
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO provider_favorites (id, user_id, provider_id, created_by) VALUES (?,?,?,?)",
			uuid.NewString(), userID, providerID, userID)
		return true, err
	default:
		return false, err
	}
}

// ListByUser returns the user's favorites with the provider and category
// projection residents see on the favorites page.
func (r *FavoriteRepo) ListByUser(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.provider_id, f.user_id, f.created_at,
		        p.id, p.category_id, c.name, p.business_name, p.contact_name,
		        p.phone, p.whatsapp, p.email, p.address, p.website, p.description,
		        p.rating_avg, p.review_count, p.status, p.created_at, p.updated_at
		 FROM provider_favorites f
		 JOIN service_providers p ON p.id = f.provider_id AND p.deleted = 0
		 JOIN service_categories c ON c.id = p.category_id AND c.deleted = 0
		 WHERE f.user_id = ? AND f.deleted = 0
		 ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		p := &f.Provider
		if err := rows.Scan(&f.ID, &f.ProviderID, &f.UserID, &f.CreatedAt,
			&p.ID, &p.CategoryID, &p.CategoryName, &p.BusinessName, &p.ContactName,
			&p.Phone, &p.WhatsApp, &p.Email, &p.Address, &p.Website, &p.Description,
			&p.RatingAvg, &p.ReviewCount, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
