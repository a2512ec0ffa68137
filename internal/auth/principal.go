// Package auth implements the authentication core: credential validation,
// refresh token lifecycle and the signed session artifact. It owns no HTTP
// concerns; handlers and middleware consume it.
package auth

// Principal is the authenticated identity plus its resolved role and
// permission set. It is a projection assembled fresh on every successful
// authentication and reconstructed from the session artifact on every
// request; it is never persisted.
type Principal struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status"`
}

// HasPermission reports whether the principal carries the permission code.
func (p Principal) HasPermission(code string) bool {
	for _, c := range p.Permissions {
		if c == code {
			return true
		}
	}
	return false
}
