package router

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sondehub/hub/pkg/audit"
	"github.com/sondehub/hub/pkg/store"
)

type fakeDispatcher struct {
	online bool
	result []byte
	err    error
}

func (f fakeDispatcher) IsOnline(agentName string) bool { return f.online }
func (f fakeDispatcher) Call(ctx context.Context, agentName, method string, params any, timeout time.Duration) ([]byte, error) {
	return f.result, f.err
}

func newTestRouter(t *testing.T, dispatcher AgentCaller) (*Router, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT, timestamp TEXT NOT NULL, api_key_id TEXT,
			agent_id TEXT, probe TEXT NOT NULL, status TEXT NOT NULL, duration_ms INTEGER NOT NULL,
			request_json TEXT, response_json TEXT, prev_hash TEXT NOT NULL);
		CREATE TABLE probe_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT, probe TEXT NOT NULL, agent TEXT, integration_id TEXT,
			status TEXT NOT NULL, duration_ms INTEGER NOT NULL, data_json TEXT, error_text TEXT, ts TEXT NOT NULL);
	`)
	require.NoError(t, err)

	s := store.NewFromDB(db)
	ledger := audit.New(s)
	r := New(s, ledger, nil, dispatcher, nil)
	return r, s
}

func TestRouterInternalHandler(t *testing.T) {
	r, s := newTestRouter(t, fakeDispatcher{})
	r.RegisterInternal("hub.health", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"ok": true}, nil
	})

	result, err := r.Execute(context.Background(), "hub.health", nil, "", "key-1")
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)

	rows, err := s.ListAuditEntries(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, store.AuditSuccess, rows[0].Status)
}

func TestRouterNoRoute(t *testing.T) {
	r, _ := newTestRouter(t, fakeDispatcher{})

	result, err := r.Execute(context.Background(), "nonexistent.probe", nil, "", "key-1")
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Contains(t, result.Error, "no-route")
}

func TestRouterAgentOffline(t *testing.T) {
	r, _ := newTestRouter(t, fakeDispatcher{online: false})

	result, err := r.Execute(context.Background(), "disk.usage", nil, "srv-01", "key-1")
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Equal(t, "agent offline", result.Error)
}

func TestRouterAgentOnlineSucceeds(t *testing.T) {
	r, _ := newTestRouter(t, fakeDispatcher{online: true, result: []byte(`{"percent":42}`)})

	result, err := r.Execute(context.Background(), "disk.usage", nil, "srv-01", "key-1")
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
}
