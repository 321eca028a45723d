package enrollment

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE enrollment_tokens (
			token TEXT PRIMARY KEY, created_at TEXT NOT NULL, expires_at TEXT NOT NULL,
			used_at TEXT, used_by_agent TEXT);
		CREATE TABLE agents (
			id TEXT PRIMARY KEY, name TEXT UNIQUE NOT NULL, status TEXT NOT NULL DEFAULT 'offline',
			last_seen TEXT, os TEXT, agent_version TEXT, packs_json TEXT NOT NULL DEFAULT '[]',
			cert_pem TEXT, cert_fingerprint TEXT, attestation_json TEXT,
			attestation_mismatch INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL, updated_at TEXT NOT NULL);
	`)
	require.NoError(t, err)

	certPEM, keyPEM, err := crypto.GenerateCA()
	require.NoError(t, err)
	ca, err := crypto.LoadCA(certPEM, keyPEM)
	require.NoError(t, err)

	return New(store.NewFromDB(db), ca, "wss://hub.example.invalid")
}

func TestEnrollmentTokenLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok, err := svc.CreateToken(ctx, 15*time.Minute)
	require.NoError(t, err)

	valid, err := svc.IsValid(ctx, tok.Token)
	require.NoError(t, err)
	require.True(t, valid)

	result, err := svc.Consume(ctx, tok.Token, "srv-01")
	require.NoError(t, err)
	require.NotEmpty(t, result.CertPEM)
	require.NotEmpty(t, result.CACertPEM)
	require.Equal(t, "wss://hub.example.invalid", result.HubURL)

	_, err = svc.Consume(ctx, tok.Token, "srv-02")
	require.Error(t, err)

	valid, err = svc.IsValid(ctx, tok.Token)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestEnrollmentConsumeExpiredTokenFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok, err := svc.CreateToken(ctx, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, tok.Token, "srv-01")
	require.Error(t, err)
}

func TestEnrollmentConsumeUnknownTokenFails(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Consume(context.Background(), "does-not-exist", "srv-01")
	require.Error(t, err)
}
