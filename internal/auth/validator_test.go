package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/madeira/residential-services/internal/queue"
	"github.com/madeira/residential-services/internal/repository"
	"github.com/madeira/residential-services/internal/utils"
)

type stubUserStore struct {
	users map[string]repository.User
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (repository.User, error) {
	u, ok := s.users[email]
	if !ok {
		return repository.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type stubRoleStore struct {
	role  repository.Role
	perms []string
}

func (s *stubRoleStore) GetByID(_ context.Context, _ string) (repository.Role, error) {
	return s.role, nil
}

func (s *stubRoleStore) ResolvePermissions(_ context.Context, _ string) ([]string, error) {
	return s.perms, nil
}

type stubPublisher struct {
	events []queue.AuthEvent
	err    error
}

func (s *stubPublisher) PublishAuthEvent(_ context.Context, ev queue.AuthEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func activeUser(t *testing.T) repository.User {
	return repository.User{
		ID:           "u1",
		Email:        "ana@example.com",
		PasswordHash: mustHash(t, "correct horse"),
		FullName:     "Ana Pereira",
		RoleID:       "r-resident",
		Status:       repository.UserStatusActive,
	}
}

func newTestValidator(users *stubUserStore, roles *stubRoleStore, tokens *TokenManager, events EventPublisher) *Validator {
	return NewValidator(users, roles, tokens, events, zerolog.Nop())
}

func TestValidateUnknownEmail(t *testing.T) {
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{}}, &stubRoleStore{}, nil, nil)

	_, _, err := v.Validate(context.Background(), Credentials{Email: "nobody@example.com", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateWrongPassword(t *testing.T) {
	u := activeUser(t)
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, nil, nil)

	_, _, err := v.Validate(context.Background(), Credentials{Email: u.Email, Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateEmptyInputs(t *testing.T) {
	v := newTestValidator(&stubUserStore{}, &stubRoleStore{}, nil, nil)

	for _, cred := range []Credentials{
		{},
		{Email: "ana@example.com"},
		{Password: "something"},
	} {
		if _, _, err := v.Validate(context.Background(), cred); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("cred %+v: want ErrInvalidCredentials, got %v", cred, err)
		}
	}
}

// A pending account fails with its status even when the password is wrong:
// the lifecycle gate runs before the password comparison, so the error can
// never be used to probe passwords of unapproved accounts.
func TestValidatePendingAccount(t *testing.T) {
	u := activeUser(t)
	u.Status = repository.UserStatusPending
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, nil, nil)

	for _, password := range []string{"correct horse", "wrong"} {
		_, _, err := v.Validate(context.Background(), Credentials{Email: u.Email, Password: password})
		var notActive *AccountNotActiveError
		if !errors.As(err, &notActive) {
			t.Fatalf("password %q: want AccountNotActiveError, got %v", password, err)
		}
		if notActive.Status != repository.UserStatusPending {
			t.Errorf("want status pending, got %q", notActive.Status)
		}
	}
}

func TestValidateInactiveAccount(t *testing.T) {
	u := activeUser(t)
	u.Status = repository.UserStatusInactive
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, nil, nil)

	_, _, err := v.Validate(context.Background(), Credentials{Email: u.Email, Password: "correct horse"})
	var notActive *AccountNotActiveError
	if !errors.As(err, &notActive) || notActive.Status != repository.UserStatusInactive {
		t.Fatalf("want AccountNotActiveError(inactive), got %v", err)
	}
}

func TestValidateSuccess(t *testing.T) {
	u := activeUser(t)
	roles := &stubRoleStore{
		role:  repository.Role{ID: "r-resident", Name: repository.RoleResident},
		perms: []string{"VIEW_PROVIDERS", "VIEW_PROVIDERS", "MANAGE_PROVIDERS"},
	}
	pub := &stubPublisher{}
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, roles, nil, pub)

	// Email matching is case- and whitespace-insensitive.
	p, token, err := v.Validate(context.Background(), Credentials{
		Email:     "  Ana@Example.com ",
		Password:  "correct horse",
		UserAgent: "Mozilla Windows",
		IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("no refresh token expected without remember, got %q", token)
	}
	if p.ID != "u1" || p.Role != repository.RoleResident || p.Status != repository.UserStatusActive {
		t.Errorf("unexpected principal %+v", p)
	}
	if want := []string{"VIEW_PROVIDERS", "MANAGE_PROVIDERS"}; !reflect.DeepEqual(p.Permissions, want) {
		t.Errorf("permissions not deduplicated: %v", p.Permissions)
	}

	if len(pub.events) != 1 || pub.events[0].Event != queue.EventLogin || pub.events[0].UserID != "u1" {
		t.Errorf("want one login event for u1, got %+v", pub.events)
	}
}

func TestValidateRememberIssuesDeviceToken(t *testing.T) {
	u := activeUser(t)
	store := newStubTokenStore()
	tm := newTestManager(store, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, tm, nil)

	_, token, err := v.Validate(context.Background(), Credentials{
		Email:    u.Email,
		Password: "correct horse",
		Remember: true,
		DeviceID: "dev-a",
	})
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("remember=true should yield a refresh token")
	}
	rec, ok := store.recs[token]
	if !ok {
		t.Fatal("issued token not persisted")
	}
	if rec.UserID != "u1" || rec.DeviceID != "dev-a" {
		t.Errorf("token scoped wrong: %+v", rec)
	}
}

// Refresh tokens depend on a device identity; without one the login still
// succeeds but stays session-only.
func TestValidateRememberWithoutDeviceID(t *testing.T) {
	u := activeUser(t)
	store := newStubTokenStore()
	tm := newTestManager(store, time.Now().UTC())
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, tm, nil)

	_, token, err := v.Validate(context.Background(), Credentials{
		Email:    u.Email,
		Password: "correct horse",
		Remember: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if token != "" || len(store.recs) != 0 {
		t.Errorf("no token should be issued without a device id, got %q (%d stored)", token, len(store.recs))
	}
}

// A broker outage must not fail an otherwise correct login.
func TestValidatePublishFailureIsNonFatal(t *testing.T) {
	u := activeUser(t)
	pub := &stubPublisher{err: errors.New("broker down")}
	v := newTestValidator(&stubUserStore{users: map[string]repository.User{u.Email: u}}, &stubRoleStore{}, nil, pub)

	if _, _, err := v.Validate(context.Background(), Credentials{Email: u.Email, Password: "correct horse"}); err != nil {
		t.Fatalf("login should survive publish failure, got %v", err)
	}
}
