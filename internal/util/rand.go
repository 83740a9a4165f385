package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// RandomString generates a secure random string of n bytes of entropy,
// URL-safe base64 encoded.
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomHex generates a secure random string of n bytes of entropy,
// hex encoded (2n characters).
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
