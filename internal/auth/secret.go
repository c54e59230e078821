package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretHashCost is the bcrypt work factor for stored user secrets.
const SecretHashCost = 12

// MaxSecretBytes is the longest secret bcrypt will accept.
const MaxSecretBytes = 72

var ErrSecretTooLong = fmt.Errorf("secret exceeds %d bytes", MaxSecretBytes)

// HashSecret returns the bcrypt hash stored in place of a user's secret.
func HashSecret(secret string) (string, error) {
	if len(secret) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), SecretHashCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether secret matches hash. A mismatch is not an
// error; a malformed hash is.
func VerifySecret(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
