package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/repository"
)

// TokenStore is the persistence surface the token manager needs. The MySQL
// TokenRepo satisfies it; tests use an in-memory stub.
type TokenStore interface {
	Insert(ctx context.Context, t repository.RefreshToken) error
	GetByToken(ctx context.Context, token string) (repository.RefreshToken, error)
	UpdateLastUsed(ctx context.Context, token string, at time.Time) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserDevice(ctx context.Context, userID, deviceID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]repository.RefreshToken, error)
}

// DeviceMeta carries the client metadata captured at login time.
type DeviceMeta struct {
	UserAgent string
	IPAddress string
}

// Device is the per-device summary shown on the "manage my devices" view.
type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TokenManager owns the refresh token lifecycle: opaque values, absolute
// 30-day expiry, at most one live token per (user, device).
type TokenManager struct {
	store TokenStore
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

func NewTokenManager(store TokenStore, ttlDays int, log zerolog.Logger) *TokenManager {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &TokenManager{
		store: store,
		ttl:   time.Duration(ttlDays) * 24 * time.Hour,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log,
	}
}

// Issue creates a fresh token for the (user, device) pair. Any existing
// token for the same pair is removed first so the uniqueness invariant
// holds; that removal is best-effort and a failure only logs. A store
// failure on the insert itself surfaces as ErrTokenStore.
func (m *TokenManager) Issue(ctx context.Context, userID, deviceID string, meta DeviceMeta) (repository.RefreshToken, error) {
	if err := m.store.DeleteByUserDevice(ctx, userID, deviceID); err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Str("device_id", deviceID).
			Msg("could not remove previous device token")
	}

	now := m.now()
	rec := repository.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      uuid.NewString(),
		DeviceID:   deviceID,
		DeviceName: DeviceName(meta.UserAgent),
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		ExpiresAt:  now.Add(m.ttl),
		CreatedAt:  now,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return repository.RefreshToken{}, fmt.Errorf("%w: %v", ErrTokenStore, err)
	}
	return rec, nil
}

// Validate resolves a presented token. Unknown and expired tokens fail
// uniformly with ErrInvalidToken; an expired row is deleted as a side
// effect (lazy cleanup). On success last_used is bumped and the record
// returned.
func (m *TokenManager) Validate(ctx context.Context, token string) (repository.RefreshToken, error) {
	rec, err := m.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return repository.RefreshToken{}, ErrInvalidToken
		}
		return repository.RefreshToken{}, fmt.Errorf("%w: %v", ErrTokenStore, err)
	}

	now := m.now()
	if !rec.ExpiresAt.After(now) { // expires_at == now is already invalid
		if err := m.store.DeleteByToken(ctx, token); err != nil {
			m.log.Warn().Err(err).Msg("could not delete expired refresh token")
		}
		return repository.RefreshToken{}, ErrInvalidToken
	}

	if err := m.store.UpdateLastUsed(ctx, token, now); err != nil {
		m.log.Warn().Err(err).Msg("could not update refresh token last_used")
	}
	return rec, nil
}

// Revoke deletes the single matching token. Idempotent.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	if err := m.store.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenStore, err)
	}
	return nil
}

// RevokeDevice deletes whatever token the user holds for one device.
// Idempotent, like Revoke.
func (m *TokenManager) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	if err := m.store.DeleteByUserDevice(ctx, userID, deviceID); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenStore, err)
	}
	return nil
}

// RevokeAllForUser deletes every token the user holds. Used on explicit
// logout-everywhere and on account deactivation.
func (m *TokenManager) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := m.store.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenStore, err)
	}
	return nil
}

// ListDevices returns the user's device summaries ordered by most recent use.
func (m *TokenManager) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	recs, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenStore, err)
	}
	out := make([]Device, 0, len(recs))
	for _, rec := range recs {
		d := Device{
			ID:        rec.DeviceID,
			Name:      rec.DeviceName,
			IPAddress: rec.IPAddress,
			UserAgent: rec.UserAgent,
			CreatedAt: rec.CreatedAt,
		}
		if rec.LastUsed.Valid {
			t := rec.LastUsed.Time
			d.LastUsed = &t
		}
		out = append(out, d)
	}
	return out, nil
}

// DeviceName derives a coarse, human-readable device label from a
// User-Agent string. Purely cosmetic; carries no security properties.
func DeviceName(userAgent string) string {
	switch {
	case userAgent == "":
		return "Unknown Device"
	case strings.Contains(userAgent, "Mobile"):
		return "Mobile Device"
	case strings.Contains(userAgent, "Tablet"):
		return "Tablet"
	case strings.Contains(userAgent, "Windows"):
		return "Windows PC"
	case strings.Contains(userAgent, "Mac"):
		return "Mac"
	case strings.Contains(userAgent, "Linux"):
		return "Linux PC"
	default:
		return "Web Browser"
	}
}
