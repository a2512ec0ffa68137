package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials covers both unknown email and wrong password. The
// two are deliberately conflated so the wire response cannot be used to
// probe which emails are registered.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is the uniform failure for refresh token validation:
// unknown, expired and revoked tokens are indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid refresh token")

// ErrTokenStore wraps backend failures during token issue/validate/revoke.
// Callers treat issuance failures as non-fatal to login but validation
// failures as "not authenticated".
var ErrTokenStore = errors.New("token store error")

// AccountNotActiveError is returned when the credentials are correct but
// the account lifecycle status forbids a session. The status is exposed so
// the user can be told why (pending approval vs. deactivated).
type AccountNotActiveError struct {
	Status string
}

func (e *AccountNotActiveError) Error() string {
	return fmt.Sprintf("account is %s", e.Status)
}
