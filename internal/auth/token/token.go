// Package token generates and hashes the opaque secrets used across the
// application: refresh tokens, email verification links, portal sessions
// and webhook API keys. Secrets are stored hashed; only the caller ever
// sees the raw value.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateRandomToken returns a URL-safe random token built from size
// bytes of entropy.
func GenerateRandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256 returns the hex-encoded SHA-256 digest of a token. The
// digest is what gets persisted and looked up.
func HashSHA256(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
