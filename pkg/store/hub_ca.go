package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sondehub/hub/pkg/herr"
)

// GetHubCA fetches the singleton CA row, if one has been generated.
func (s *Store) GetHubCA(ctx context.Context) (*HubCA, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cert_pem, key_pem, key_pem_enc, created_at FROM hub_ca WHERE id = 1`)

	var (
		ca                   HubCA
		keyPEM, keyPEMEnc    sql.NullString
		createdAt            string
	)
	if err := row.Scan(&ca.CertPEM, &keyPEM, &keyPEMEnc, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herr.NotFoundf("hub CA not initialized")
		}
		return nil, err
	}
	ca.KeyPEM = keyPEM.String
	ca.KeyPEMEnc = keyPEMEnc.String
	if t, err := parseTime(createdAt); err == nil {
		ca.CreatedAt = t
	}
	return &ca, nil
}

// PutHubCA writes the singleton CA row. keyPEMEnc should hold the envelope-
// encrypted private key (spec.md §6); keyPEM is retained only for the rare
// bootstrap path where no hub secret is configured yet.
func (s *Store) PutHubCA(ctx context.Context, certPEM, keyPEM, keyPEMEnc string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hub_ca (id, cert_pem, key_pem, key_pem_enc, created_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cert_pem = excluded.cert_pem,
			key_pem = excluded.key_pem,
			key_pem_enc = excluded.key_pem_enc,
			created_at = excluded.created_at`,
		certPEM, keyPEM, keyPEMEnc, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put hub CA: %w", err)
	}
	return nil
}
