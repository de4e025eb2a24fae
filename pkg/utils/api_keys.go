package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// GenerateRandomKey returns length random bytes, URL-safe base64 encoded
// without padding, for use as a shared secret.
func GenerateRandomKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("key length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
