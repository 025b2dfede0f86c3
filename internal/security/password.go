package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Cost is fixed so hashes created by every instance verify the same way.
const Cost = 10

var ErrEmptyPassword = errors.New("password must be a non-empty string")

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword compares a bcrypt hash with a plaintext password.
// Mismatches and malformed hashes both report false.
func VerifyPassword(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
