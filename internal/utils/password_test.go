package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if hash == "correct horse" {
		t.Fatal("hash equals the plaintext")
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

// An out-of-range cost must still yield a hash that verifies.
func TestHashCostFallback(t *testing.T) {
	for _, cost := range []int{-1, 0, 99} {
		hash, err := HashPassword("pw", cost)
		if err != nil {
			t.Fatalf("cost %d: %v", cost, err)
		}
		if !VerifyPassword(hash, "pw") {
			t.Errorf("cost %d: hash does not verify", cost)
		}
	}
}
