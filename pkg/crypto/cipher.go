// Package crypto implements the hub's symmetric secret cipher, CA lifecycle,
// agent certificate issuance, and detached message signing (spec.md §4.B).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo binds HKDF-derived keys to their single purpose so the same hub
// secret can never be reused across unrelated ciphers.
const keyInfo = "sonde-hub/secret-cipher/v1"

// SecretCipher is an authenticated symmetric cipher for integration
// credentials and CA private keys at rest. The key is derived once from the
// hub secret via HKDF-SHA256 and held for the process lifetime.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives a 256-bit AES-GCM key from hubSecret via HKDF.
func NewSecretCipher(hubSecret []byte) (*SecretCipher, error) {
	if len(hubSecret) == 0 {
		return nil, fmt.Errorf("hub secret must not be empty")
	}
	kdf := hkdf.New(newSHA256, hubSecret, nil, []byte(keyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive cipher key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals plaintext into a self-describing base64 ciphertext
// (nonce prefix, authentication tag appended by GCM).
func (c *SecretCipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Returns an error (callers should classify it as
// herr.KindDecrypt) if the ciphertext was encrypted under a different key.
func (c *SecretCipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed box: %w", err)
	}
	return plaintext, nil
}
