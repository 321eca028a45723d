package main

import (
	"context"
	"fmt"

	"github.com/sondehub/hub/pkg/config"
	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/store"
)

// loadOrInitCA loads the hub's CA from the store, generating and persisting
// a fresh one on first run (spec.md §4.B "generated once at bootstrap").
// The private key is encrypted at rest with the hub secret whenever one is
// configured, falling back to plaintext storage only if HubSecret() errors
// — acceptable for local/dev use, never for a production deployment.
func loadOrInitCA(ctx context.Context, st *store.Store, cfg *config.Config) (*crypto.CA, error) {
	row, err := st.GetHubCA(ctx)
	if err == nil {
		return decodeStoredCA(row, cfg)
	}

	certPEM, keyPEM, err := crypto.GenerateCA()
	if err != nil {
		return nil, fmt.Errorf("generate hub ca: %w", err)
	}

	if err := persistCA(ctx, st, cfg, certPEM, keyPEM); err != nil {
		return nil, err
	}

	return crypto.LoadCA(certPEM, keyPEM)
}

func decodeStoredCA(row *store.HubCA, cfg *config.Config) (*crypto.CA, error) {
	if row.KeyPEMEnc != "" {
		secret, err := cfg.HubSecret()
		if err != nil {
			return nil, fmt.Errorf("hub ca key is encrypted but %w", err)
		}
		sc, err := crypto.NewSecretCipher(secret)
		if err != nil {
			return nil, fmt.Errorf("build secret cipher: %w", err)
		}
		keyPEM, err := sc.Decrypt(row.KeyPEMEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt hub ca key: %w", err)
		}
		return crypto.LoadCA([]byte(row.CertPEM), keyPEM)
	}
	return crypto.LoadCA([]byte(row.CertPEM), []byte(row.KeyPEM))
}

func persistCA(ctx context.Context, st *store.Store, cfg *config.Config, certPEM, keyPEM []byte) error {
	secret, err := cfg.HubSecret()
	if err != nil {
		return st.PutHubCA(ctx, string(certPEM), string(keyPEM), "")
	}
	sc, err := crypto.NewSecretCipher(secret)
	if err != nil {
		return fmt.Errorf("build secret cipher: %w", err)
	}
	enc, err := sc.Encrypt(keyPEM)
	if err != nil {
		return fmt.Errorf("encrypt hub ca key: %w", err)
	}
	return st.PutHubCA(ctx, string(certPEM), "", enc)
}
