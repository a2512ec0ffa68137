package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/repository"
)

// stubTokenStore is an in-memory TokenStore keyed by opaque token value.
type stubTokenStore struct {
	recs      map[string]repository.RefreshToken
	insertErr error
}

func newStubTokenStore() *stubTokenStore {
	return &stubTokenStore{recs: map[string]repository.RefreshToken{}}
}

func (s *stubTokenStore) Insert(_ context.Context, t repository.RefreshToken) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.recs[t.Token] = t
	return nil
}

func (s *stubTokenStore) GetByToken(_ context.Context, token string) (repository.RefreshToken, error) {
	rec, ok := s.recs[token]
	if !ok {
		return repository.RefreshToken{}, repository.ErrTokenNotFound
	}
	return rec, nil
}

func (s *stubTokenStore) UpdateLastUsed(_ context.Context, token string, at time.Time) error {
	rec, ok := s.recs[token]
	if !ok {
		return nil
	}
	rec.LastUsed.Valid = true
	rec.LastUsed.Time = at
	s.recs[token] = rec
	return nil
}

func (s *stubTokenStore) DeleteByToken(_ context.Context, token string) error {
	delete(s.recs, token)
	return nil
}

func (s *stubTokenStore) DeleteByUserDevice(_ context.Context, userID, deviceID string) error {
	for k, rec := range s.recs {
		if rec.UserID == userID && rec.DeviceID == deviceID {
			delete(s.recs, k)
		}
	}
	return nil
}

func (s *stubTokenStore) DeleteAllForUser(_ context.Context, userID string) error {
	for k, rec := range s.recs {
		if rec.UserID == userID {
			delete(s.recs, k)
		}
	}
	return nil
}

func (s *stubTokenStore) ListByUser(_ context.Context, userID string) ([]repository.RefreshToken, error) {
	var out []repository.RefreshToken
	for _, rec := range s.recs {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestManager(store TokenStore, at time.Time) *TokenManager {
	m := NewTokenManager(store, 30, zerolog.Nop())
	m.now = func() time.Time { return at }
	return m
}

func TestIssueReplacesTokenForSameDevice(t *testing.T) {
	store := newStubTokenStore()
	m := newTestManager(store, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{UserAgent: "Mozilla Windows"})
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{UserAgent: "Mozilla Windows"})
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if len(store.recs) != 1 {
		t.Fatalf("want 1 token after reissue on same device, got %d", len(store.recs))
	}
	if _, ok := store.recs[first.Token]; ok {
		t.Error("first token should have been replaced")
	}
	if _, ok := store.recs[second.Token]; !ok {
		t.Error("second token missing from store")
	}
}

func TestIssueKeepsTokensOnOtherDevices(t *testing.T) {
	store := newStubTokenStore()
	m := newTestManager(store, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Issue(ctx, "u1", "dev-b", DeviceMeta{}); err != nil {
		t.Fatal(err)
	}

	if len(store.recs) != 2 {
		t.Fatalf("want one token per device, got %d", len(store.recs))
	}
}

func TestValidateUnknownToken(t *testing.T) {
	m := newTestManager(newStubTokenStore(), time.Now().UTC())

	_, err := m.Validate(context.Background(), "no-such-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubTokenStore()
	m := newTestManager(store, issuedAt)
	ctx := context.Background()

	rec, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{})
	if err != nil {
		t.Fatal(err)
	}

	// One second before expiry the token is still good.
	m.now = func() time.Time { return rec.ExpiresAt.Add(-time.Second) }
	if _, err := m.Validate(ctx, rec.Token); err != nil {
		t.Fatalf("token should be valid just before expiry: %v", err)
	}

	// At the exact expiry instant it is already invalid, and the row is
	// removed as a side effect.
	m.now = func() time.Time { return rec.ExpiresAt }
	if _, err := m.Validate(ctx, rec.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken at expiry instant, got %v", err)
	}
	if _, ok := store.recs[rec.Token]; ok {
		t.Error("expired token should have been deleted")
	}
}

func TestValidateBumpsLastUsed(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStubTokenStore()
	m := newTestManager(store, at)
	ctx := context.Background()

	rec, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{})
	if err != nil {
		t.Fatal(err)
	}

	later := at.Add(time.Hour)
	m.now = func() time.Time { return later }
	if _, err := m.Validate(ctx, rec.Token); err != nil {
		t.Fatal(err)
	}

	got := store.recs[rec.Token]
	if !got.LastUsed.Valid || !got.LastUsed.Time.Equal(later) {
		t.Errorf("last_used not bumped: %+v", got.LastUsed)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := newStubTokenStore()
	m := newTestManager(store, time.Now().UTC())
	ctx := context.Background()

	rec, err := m.Issue(ctx, "u1", "dev-a", DeviceMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Revoke(ctx, rec.Token); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := m.Revoke(ctx, rec.Token); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}
}

func TestRevokeAllThenListEmpty(t *testing.T) {
	store := newStubTokenStore()
	m := newTestManager(store, time.Now().UTC())
	ctx := context.Background()

	for _, dev := range []string{"dev-a", "dev-b", "dev-c"} {
		if _, err := m.Issue(ctx, "u1", dev, DeviceMeta{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Issue(ctx, "u2", "dev-z", DeviceMeta{}); err != nil {
		t.Fatal(err)
	}

	if err := m.RevokeAllForUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	devices, err := m.ListDevices(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 0 {
		t.Errorf("want no devices after revoke-all, got %d", len(devices))
	}

	// The other user's token is untouched.
	other, err := m.ListDevices(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 1 {
		t.Errorf("want u2's device to survive, got %d", len(other))
	}
}

func TestDeviceName(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{"", "Unknown Device"},
		{"Mozilla/5.0 (iPhone) Mobile Safari", "Mobile Device"},
		{"Mozilla/5.0 (Windows NT 10.0)", "Windows PC"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X)", "Mac"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux PC"},
		{"curl/8.0", "Web Browser"},
	}
	for _, c := range cases {
		if got := DeviceName(c.ua); got != c.want {
			t.Errorf("DeviceName(%q) = %q, want %q", c.ua, got, c.want)
		}
	}
}
