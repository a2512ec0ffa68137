package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RefreshToken mirrors the 'refresh_tokens' table. Tokens are opaque values
// scoped to one (user, device) pair; device metadata exists only so the
// "manage my devices" view has something readable to show.
type RefreshToken struct {
	ID         string
	UserID     string
	Token      string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsed   sql.NullTime
}

// ErrTokenNotFound is returned when no row matches the presented token.
var ErrTokenNotFound = errors.New("refresh token not found")

// TokenRepo persists refresh tokens. Lifecycle rules (expiry, per-device
// uniqueness) live in the auth token manager; this type only talks SQL.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// Insert stores a refresh token row.
func (r *TokenRepo) Insert(ctx context.Context, t RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, device_id, device_name, ip_address, user_agent, expires_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Token, t.DeviceID, t.DeviceName, t.IPAddress, t.UserAgent, t.ExpiresAt)
	return err
}

// GetByToken looks a row up by its opaque token value.
func (r *TokenRepo) GetByToken(ctx context.Context, token string) (RefreshToken, error) {
	var t RefreshToken
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, device_id, device_name, ip_address, user_agent, expires_at, created_at, last_used
		 FROM refresh_tokens WHERE token = ? LIMIT 1`, token).
		Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceID, &t.DeviceName, &t.IPAddress,
			&t.UserAgent, &t.ExpiresAt, &t.CreatedAt, &t.LastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshToken{}, ErrTokenNotFound
	}
	return t, err
}

// UpdateLastUsed bumps the last_used timestamp after a successful validation.
func (r *TokenRepo) UpdateLastUsed(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET last_used = ? WHERE token = ?", at, token)
	return err
}

// DeleteByToken removes the single matching row. Deleting an absent token
// is not an error.
func (r *TokenRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token = ?", token)
	return err
}

// DeleteByUserDevice removes any token held for the (user, device) pair.
func (r *TokenRepo) DeleteByUserDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id = ? AND device_id = ?", userID, deviceID)
	return err
}

// DeleteAllForUser removes every token the user holds, across devices.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id = ?", userID)
	return err
}

// ListByUser returns the user's tokens ordered by most recent use.
func (r *TokenRepo) ListByUser(ctx context.Context, userID string) ([]RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, token, device_id, device_name, ip_address, user_agent, expires_at, created_at, last_used
		 FROM refresh_tokens WHERE user_id = ?
		 ORDER BY COALESCE(last_used, created_at) DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefreshToken
	for rows.Next() {
		var t RefreshToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceID, &t.DeviceName,
			&t.IPAddress, &t.UserAgent, &t.ExpiresAt, &t.CreatedAt, &t.LastUsed); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
