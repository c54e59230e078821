package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// APIKeyBytes is the entropy of a generated key before encoding.
const APIKeyBytes = 32

// GenerateAPIKey returns a URL-safe random token drawn from crypto/rand.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, APIKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
