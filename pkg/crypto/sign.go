package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// CanonicalSignatureInput builds the canonical bytes signed over an outbound
// dispatcher message: utf8(<kind>|<id>|<canonical-json(body)>) (spec.md §6).
func CanonicalSignatureInput(kind string, id int64, canonicalBody []byte) []byte {
	input := fmt.Sprintf("%s|%d|", kind, id)
	return append([]byte(input), canonicalBody...)
}

// Sign produces a detached base64 signature over data using the CA key.
func (c *CA) Sign(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a detached base64 signature against data using pub (the
// dispatcher passes the connected agent's client-certificate key). Returns a non-nil error on any mismatch or malformed input;
// dispatcher callers MUST drop the message and log the violation, performing
// no state mutation (spec.md §4.D failure semantics).
func Verify(pub *rsa.PublicKey, data []byte, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
