package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/audit"
	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/dispatcher"
	"github.com/sondehub/hub/pkg/enrollment"
	hubmetrics "github.com/sondehub/hub/pkg/metrics"
	"github.com/sondehub/hub/pkg/router"
	"github.com/sondehub/hub/pkg/runbook"
	"github.com/sondehub/hub/pkg/store"
)

type testServer struct {
	srv *Server
	st  *store.Store
	ca  *crypto.CA
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	certPEM, keyPEM, err := crypto.GenerateCA()
	require.NoError(t, err)
	ca, err := crypto.LoadCA(certPEM, keyPEM)
	require.NoError(t, err)

	ledger := audit.New(st)
	disp := dispatcher.New(ca)
	t.Cleanup(disp.Stop)

	rt := router.New(st, ledger, nil, disp, nil)
	rt.RegisterInternal("hub.health", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	reg := runbook.NewRegistry()
	engine := runbook.New(reg, func(ctx context.Context, probe string, params map[string]any, agent string) runbook.ProbeOutcome {
		return runbook.ProbeOutcome{Probe: probe, Status: "ok"}
	}, disp.ListOnlineAgents)

	enrollSvc := enrollment.New(st, ca, "wss://hub.example.invalid")
	m := hubmetrics.New(prometheus.NewRegistry())

	srv := New(st, rt, engine, enrollSvc, ledger, disp, m, nil, nil)
	return &testServer{srv: srv, st: st, ca: ca}
}

func (ts *testServer) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rec, req)
	return rec
}

func createTestApiKey(t *testing.T, st *store.Store) string {
	t.Helper()
	raw := "test-raw-api-key"
	_, err := st.CreateApiKey(context.Background(), "test-key", crypto.HashApiKey(raw), "{}", "", "agent", "", nil)
	require.NoError(t, err)
	return raw
}

func TestHealthHandlerIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApiV1RequiresBearerKey(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/agents", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApiV1RejectsUnknownKey(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/agents", "not-a-real-key", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExecuteProbeInternalHandler(t *testing.T) {
	ts := newTestServer(t)
	key := createTestApiKey(t, ts.st)

	rec := ts.do(t, http.MethodPost, "/api/v1/probes/execute", key, executeProbeRequest{Probe: "hub.health"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result router.ExecuteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "ok", result.Status)
}

func TestEnrollmentTokenLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	key := createTestApiKey(t, ts.st)

	rec := ts.do(t, http.MethodPost, "/api/v1/enrollment/tokens", key, createEnrollmentTokenRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)

	var tok store.EnrollmentToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)

	rec = ts.do(t, http.MethodPost, "/api/v1/enrollment/consume", "", consumeEnrollmentTokenRequest{
		Token: tok.Token, AgentName: "srv-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditVerifyEmptyLedger(t *testing.T) {
	ts := newTestServer(t)
	key := createTestApiKey(t, ts.st)

	rec := ts.do(t, http.MethodGet, "/api/v1/audit/verify", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp auditVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Valid)
}
