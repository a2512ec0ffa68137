package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim shape packed into the session artifact. The
// artifact carries everything the access middleware needs, so no database
// round trip happens on ordinary requests. It must never contain the
// password hash or any other stored secret.
type SessionClaims struct {
	Email        string   `json:"email,omitempty"`
	Name         string   `json:"name,omitempty"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	Status       string   `json:"status,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidSession covers every way a presented artifact can fail:
// malformed, tampered, wrong algorithm, expired. The middleware treats all
// of them as "no session".
var ErrInvalidSession = errors.New("invalid session")

// SessionCodec issues and verifies the signed, time-boxed session artifact
// (an HS256 JWT).
type SessionCodec struct {
	secret []byte
	now    func() time.Time
}

func NewSessionCodec(secret string) *SessionCodec {
	return &SessionCodec{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Encode packs a principal (and an optional refresh token reference) into a
// signed artifact valid for ttl. Returns the artifact and its expiry.
func (c *SessionCodec) Encode(p Principal, refreshToken string, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Email:        p.Email,
		Name:         p.Name,
		Role:         p.Role,
		Permissions:  p.Permissions,
		Status:       p.Status,
		RefreshToken: refreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies signature and expiry and reconstructs the principal plus
// the embedded refresh token reference. Every failure mode collapses into
// ErrInvalidSession so the middleware fails closed.
func (c *SessionCodec) Decode(artifact string) (Principal, string, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(artifact, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !tok.Valid {
		return Principal{}, "", ErrInvalidSession
	}

	p := Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		Status:      claims.Status,
	}
	if p.Permissions == nil {
		p.Permissions = []string{}
	}
	return p, claims.RefreshToken, nil
}
