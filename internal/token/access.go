package token

import (
	"crypto/rand"   // secure random number generation for raw secrets
	"crypto/sha256" // SHA-256 hashing; only the digest is persisted
	"encoding/hex"  // hex encoding for secrets and digests
)

// secretBytes is the entropy of a raw access token secret.  48 bytes
// yields a 96 character hex string.
const secretBytes = 48

// NewSecret returns a high-entropy random secret for a kiosk access
// token.  The raw value is handed to the caller exactly once; only the
// hash ever reaches storage.
func NewSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 hex digest of a raw secret.  Storing
// only the digest keeps stolen database rows from being redeemable.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
