// Package utils holds small helpers shared across handlers and services.
package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash of a plaintext password. A cost
// outside bcrypt's supported range falls back to the library default, so
// a misconfigured BCRYPT_COST can never produce unverifiable hashes.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches the stored hash. bcrypt's
// comparison is constant time, so timing reveals nothing about the hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
