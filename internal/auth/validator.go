package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/queue"
	"github.com/madeira/residential-services/internal/repository"
	"github.com/madeira/residential-services/internal/utils"
)

// UserStore is the slice of the user repository the validator needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (repository.User, error)
}

// RoleStore resolves a user's role and flattens its permission grants.
type RoleStore interface {
	GetByID(ctx context.Context, id string) (repository.Role, error)
	ResolvePermissions(ctx context.Context, roleID string) ([]string, error)
}

// EventPublisher pushes auth events onto the broker. Publishing is always
// best-effort; the validator logs and continues on failure.
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, ev queue.AuthEvent) error
}

// Credentials is the input to a validation attempt. DeviceID, UserAgent and
// IPAddress are client metadata used for token scoping and audit rows.
type Credentials struct {
	Email     string
	Password  string
	Remember  bool
	DeviceID  string
	UserAgent string
	IPAddress string
}

// Validator authenticates credentials against the user and role stores and
// assembles the session principal. Tokens and events are optional
// collaborators; when absent the corresponding side effect is skipped.
type Validator struct {
	users  UserStore
	roles  RoleStore
	tokens *TokenManager
	events EventPublisher
	log    zerolog.Logger
}

func NewValidator(users UserStore, roles RoleStore, tokens *TokenManager, events EventPublisher, log zerolog.Logger) *Validator {
	return &Validator{users: users, roles: roles, tokens: tokens, events: events, log: log}
}

// Validate runs the credential check sequence: lookup, lifecycle status
// gate, password comparison, permission resolution, then side effects.
// There is no partial success: any failure aborts with no principal and
// no refresh token. On success it returns the principal and, when a
// refresh token was issued (remember = true), its opaque value for the
// client to keep.
func (v *Validator) Validate(ctx context.Context, cred Credentials) (Principal, string, error) {
	email := strings.ToLower(strings.TrimSpace(cred.Email))
	if email == "" || cred.Password == "" {
		return Principal{}, "", ErrInvalidCredentials
	}

	// Soft-deleted users are filtered at the store, so "deleted" and
	// "never existed" are indistinguishable here by construction.
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Principal{}, "", ErrInvalidCredentials
		}
		return Principal{}, "", err
	}

	// Status is gated before the password so pending and inactive accounts
	// can never authenticate, regardless of password correctness.
	if user.Status != repository.UserStatusActive {
		return Principal{}, "", &AccountNotActiveError{Status: user.Status}
	}

	if !utils.VerifyPassword(user.PasswordHash, cred.Password) {
		return Principal{}, "", ErrInvalidCredentials
	}

	role, err := v.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		return Principal{}, "", err
	}
	codes, err := v.roles.ResolvePermissions(ctx, user.RoleID)
	if err != nil {
		return Principal{}, "", err
	}

	principal := Principal{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.FullName,
		Role:        role.Name,
		Permissions: dedupe(codes),
		Status:      user.Status,
	}

	// Side effects below are non-fatal: a broker or token store hiccup
	// must not turn a correct login into a failure.
	var refreshToken string
	if cred.Remember && v.tokens != nil && cred.DeviceID != "" {
		rec, err := v.tokens.Issue(ctx, user.ID, cred.DeviceID, DeviceMeta{
			UserAgent: cred.UserAgent,
			IPAddress: cred.IPAddress,
		})
		if err != nil {
			v.log.Warn().Err(err).Str("user_id", user.ID).Msg("refresh token issuance failed")
		} else {
			refreshToken = rec.Token
		}
	}

	if v.events != nil {
		ev := queue.AuthEvent{
			UserID:     user.ID,
			Event:      queue.EventLogin,
			IPAddress:  cred.IPAddress,
			UserAgent:  cred.UserAgent,
			DeviceName: DeviceName(cred.UserAgent),
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := v.events.PublishAuthEvent(ctx, ev); err != nil {
			v.log.Warn().Err(err).Str("user_id", user.ID).Msg("auth event publish failed")
		}
	}

	return principal, refreshToken, nil
}

// dedupe keeps the first occurrence of each permission code. The SQL layer
// already uses DISTINCT; this guards the set semantics independently of
// the store implementation.
func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
