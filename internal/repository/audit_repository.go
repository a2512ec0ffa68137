package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// AuthLog mirrors the 'auth_logs' table: one row per authentication event
// (login, logout, token_refresh). Written by the queue consumer, never by
// the request path.
type AuthLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Event      string    `json:"event"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends an auth event row.
func (r *AuditRepo) Record(ctx context.Context, l AuthLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_logs (id, user_id, event, ip_address, user_agent, device_name)
		 VALUES (?,?,?,?,?,?)`,
		l.ID, l.UserID, l.Event, l.IPAddress, l.UserAgent, l.DeviceName)
	return err
}

// ListByUser returns a user's recent auth events, newest first, capped at limit.
func (r *AuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]AuthLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event, ip_address, user_agent, device_name, created_at
		 FROM auth_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuthLog
	for rows.Next() {
		var l AuthLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Event, &l.IPAddress, &l.UserAgent,
			&l.DeviceName, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
