package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
	hubstore "github.com/sondehub/hub/pkg/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			api_key_id TEXT,
			agent_id TEXT,
			probe TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			request_json TEXT,
			response_json TEXT,
			prev_hash TEXT NOT NULL
		)`)
	require.NoError(t, err)

	return New(hubstore.NewFromDB(db))
}

func TestLedgerVerifyEmptyLedger(t *testing.T) {
	l := newTestLedger(t)

	result, err := l.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestLedgerAppendAndVerify(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, Entry{
			Timestamp:  time.Now(),
			Probe:      "disk.usage",
			Status:     hubstore.AuditSuccess,
			DurationMs: int64(10 + i),
		})
		require.NoError(t, err)
	}

	result, err := l.Verify(ctx)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestLedgerVerifyDetectsTamper(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, Entry{
			Timestamp:  time.Now(),
			Probe:      "disk.usage",
			Status:     hubstore.AuditSuccess,
			DurationMs: int64(10 + i),
		})
		require.NoError(t, err)
	}

	_, err := l.store.DB().ExecContext(ctx, `UPDATE audit_entries SET status = 'error' WHERE id = 2`)
	require.NoError(t, err)

	result, err := l.Verify(ctx)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.EqualValues(t, 3, result.BrokenAt)
}
