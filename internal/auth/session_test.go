package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func testPrincipal() Principal {
	return Principal{
		ID:          "u1",
		Email:       "ana@example.com",
		Name:        "Ana Pereira",
		Role:        "resident",
		Permissions: []string{"VIEW_PROVIDERS"},
		Status:      "active",
	}
}

func TestSessionRoundTrip(t *testing.T) {
	c := NewSessionCodec("test-secret")
	p := testPrincipal()

	artifact, exp, err := c.Encode(p, "refresh-123", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry in the past: %v", exp)
	}

	got, refresh, err := c.Decode(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID || got.Email != p.Email || got.Name != p.Name ||
		got.Role != p.Role || got.Status != p.Status {
		t.Errorf("principal mangled in transit: %+v", got)
	}
	if len(got.Permissions) != 1 || got.Permissions[0] != "VIEW_PROVIDERS" {
		t.Errorf("permissions mangled: %v", got.Permissions)
	}
	if refresh != "refresh-123" {
		t.Errorf("refresh reference lost: %q", refresh)
	}
}

func TestSessionExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewSessionCodec("test-secret")
	c.now = func() time.Time { return issued }

	artifact, _, err := c.Encode(testPrincipal(), "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return issued.Add(59 * time.Minute) }
	if _, _, err := c.Decode(artifact); err != nil {
		t.Fatalf("artifact should still be valid: %v", err)
	}

	c.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, _, err := c.Decode(artifact); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("want ErrInvalidSession after expiry, got %v", err)
	}
}

func TestSessionTamperDetection(t *testing.T) {
	c := NewSessionCodec("test-secret")
	artifact, _, err := c.Encode(testPrincipal(), "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(artifact, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, _, err := c.Decode(tampered); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("want ErrInvalidSession for tampered artifact, got %v", err)
	}
}

func TestSessionWrongKey(t *testing.T) {
	artifact, _, err := NewSessionCodec("key-one").Encode(testPrincipal(), "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewSessionCodec("key-two").Decode(artifact); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("want ErrInvalidSession under wrong key, got %v", err)
	}
}

func TestSessionGarbageInputs(t *testing.T) {
	c := NewSessionCodec("test-secret")
	for _, artifact := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := c.Decode(artifact); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Decode(%q): want ErrInvalidSession, got %v", artifact, err)
		}
	}
}

// The artifact payload is only signed, not encrypted, so it must never
// carry stored secrets.
func TestSessionClaimsCarryNoSecrets(t *testing.T) {
	c := NewSessionCodec("test-secret")
	artifact, _, err := c.Encode(testPrincipal(), "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(artifact, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"password", "hash", "bcrypt"} {
		if strings.Contains(strings.ToLower(string(payload)), forbidden) {
			t.Errorf("claims leak %q: %s", forbidden, payload)
		}
	}
}

func TestDecodeNormalizesNilPermissions(t *testing.T) {
	c := NewSessionCodec("test-secret")
	p := testPrincipal()
	p.Permissions = nil

	artifact, _, err := c.Encode(p, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := c.Decode(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if got.Permissions == nil {
		t.Error("decoded permissions should be an empty slice, not nil")
	}
	if got.HasPermission("VIEW_PROVIDERS") {
		t.Error("empty permission set should grant nothing")
	}
}
