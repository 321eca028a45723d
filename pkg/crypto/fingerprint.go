package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex SHA-256 digest of a DER-encoded certificate,
// used as the agent's certFingerprint (spec.md §3).
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// HashApiKey returns the hex SHA-256 digest of a raw bearer API key, the
// value persisted as ApiKey.keyHash (spec.md §3 "raw never stored").
func HashApiKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
