package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/store"
)

type fakeCipher struct {
	plaintext []byte
	err       error
}

func (f fakeCipher) Decrypt(encoded string) ([]byte, error) { return f.plaintext, f.err }

type stubPack struct {
	manifest Manifest
	handlers map[string]Handler
}

func (p stubPack) Manifest() Manifest              { return p.manifest }
func (p stubPack) Handlers() map[string]Handler    { return p.handlers }
func (p stubPack) TestConnection(ctx context.Context, cfg Config, creds Credentials, fetch Fetch) (bool, error) {
	return true, nil
}

func newTestExecutor(t *testing.T, handlers map[string]Handler) *Executor {
	t.Helper()
	reg := NewRegistry()
	reg.Register(stubPack{manifest: Manifest{Type: "http-check", Probes: []string{"ping"}}, handlers: handlers})
	cipher := fakeCipher{plaintext: []byte(`{"endpoint":"https://example.invalid","credentials":{}}`)}
	return NewExecutor(reg, cipher, time.Second)
}

func TestExecutorRunUnknownType(t *testing.T) {
	exec := newTestExecutor(t, map[string]Handler{"ping": func(ctx context.Context, params map[string]any, cfg Config, creds Credentials, fetch Fetch) (any, error) {
		return "pong", nil
	}})

	it := &store.Integration{Type: "does-not-exist", Name: "x"}
	result := exec.Run(context.Background(), it, "ping", nil)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "unknown-type", result.Error)
}

func TestExecutorRunUnknownProbe(t *testing.T) {
	exec := newTestExecutor(t, map[string]Handler{"ping": func(ctx context.Context, params map[string]any, cfg Config, creds Credentials, fetch Fetch) (any, error) {
		return "pong", nil
	}})

	it := &store.Integration{Type: "http-check", Name: "x"}
	result := exec.Run(context.Background(), it, "nonexistent", nil)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "unknown-probe", result.Error)
}

func TestExecutorRunHandlerPanicIsRecovered(t *testing.T) {
	exec := newTestExecutor(t, map[string]Handler{"ping": func(ctx context.Context, params map[string]any, cfg Config, creds Credentials, fetch Fetch) (any, error) {
		panic("boom")
	}})

	it := &store.Integration{Type: "http-check", Name: "x"}
	result := exec.Run(context.Background(), it, "ping", nil)
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Error, "boom")
}

func TestExecutorRunSuccess(t *testing.T) {
	exec := newTestExecutor(t, map[string]Handler{"ping": func(ctx context.Context, params map[string]any, cfg Config, creds Credentials, fetch Fetch) (any, error) {
		assert.Equal(t, "https://example.invalid", cfg.Endpoint)
		return "pong", nil
	}})

	it := &store.Integration{Type: "http-check", Name: "x"}
	result := exec.Run(context.Background(), it, "ping", nil)
	require.Equal(t, "ok", result.Status)
	assert.Equal(t, "pong", result.Data)
}

func TestExecutorRunConfigDecryptFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubPack{manifest: Manifest{Type: "http-check"}, handlers: map[string]Handler{
		"ping": func(ctx context.Context, params map[string]any, cfg Config, creds Credentials, fetch Fetch) (any, error) {
			return "pong", nil
		},
	}})
	cipher := fakeCipher{err: assertError{}}
	exec := NewExecutor(reg, cipher, time.Second)

	it := &store.Integration{Type: "http-check", Name: "x"}
	result := exec.Run(context.Background(), it, "ping", nil)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "config-decrypt", result.Error)
}

type assertError struct{}

func (assertError) Error() string { return "decrypt failed" }
