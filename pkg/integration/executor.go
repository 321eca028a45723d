package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sondehub/hub/pkg/herr"
	"github.com/sondehub/hub/pkg/store"
)

// Decrypter decrypts an integration's stored ciphertext config into its
// plaintext JSON form.
type Decrypter interface {
	Decrypt(encoded string) ([]byte, error)
}

// storedConfig is the plaintext JSON shape behind an integration's
// config_encrypted column: endpoint/headers/extra plus secret credentials.
type storedConfig struct {
	Config
	Credentials Credentials `json:"credentials"`
}

// Executor runs probes against configured integration instances, almost
// verbatim in flow to tarsy's pkg/mcp.ToolExecutor.Execute: resolve →
// validate → decrypt → invoke → time → never let a panic escape
// (spec.md §4.E).
type Executor struct {
	registry *Registry
	cipher   Decrypter
	fetch    Fetch
}

// NewExecutor constructs an Executor over the given pack registry, using
// cipher to decrypt integration configs and a fixed timeout for the
// sandboxed fetch client injected into every handler.
func NewExecutor(registry *Registry, cipher Decrypter, fetchTimeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		cipher:   cipher,
		fetch:    NewSandboxedFetch(fetchTimeout),
	}
}

// Result is the outcome of one probe execution (spec.md §4.E run() return shape).
type Result struct {
	Status     string `json:"status"` // "ok" | "error"
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Run executes probe against integration with params, never returning a Go
// error for handler-level failures — those are normalised into Result
// (spec.md §4.E steps 1-5, "catch any thrown failure as {status:error}").
func (e *Executor) Run(ctx context.Context, it *store.Integration, probe string, params map[string]any) (result Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("integration probe handler panicked", "integration", it.Name, "probe", probe, "panic", r)
			result = Result{Status: "error", Error: fmt.Sprintf("handler panic: %v", r), DurationMs: time.Since(start).Milliseconds()}
		}
	}()

	pack, ok := e.registry.Lookup(it.Type)
	if !ok {
		return Result{Status: "error", Error: "unknown-type", DurationMs: time.Since(start).Milliseconds()}
	}

	handlers := pack.Handlers()
	handler, ok := handlers[probe]
	if !ok {
		return Result{Status: "error", Error: "unknown-probe", DurationMs: time.Since(start).Milliseconds()}
	}

	cfg, creds, err := e.decryptConfig(it)
	if err != nil {
		return Result{Status: "error", Error: "config-decrypt", DurationMs: time.Since(start).Milliseconds()}
	}

	data, err := handler(ctx, params, cfg, creds, e.fetch)
	if err != nil {
		return Result{Status: "error", Error: err.Error(), DurationMs: time.Since(start).Milliseconds()}
	}

	return Result{Status: "ok", Data: data, DurationMs: time.Since(start).Milliseconds()}
}

// TestConnection invokes the pack's synchronous connectivity check.
func (e *Executor) TestConnection(ctx context.Context, it *store.Integration) (ok bool, errMsg string) {
	pack, found := e.registry.Lookup(it.Type)
	if !found {
		return false, "unknown-type"
	}
	cfg, creds, err := e.decryptConfig(it)
	if err != nil {
		return false, "config-decrypt"
	}
	success, err := pack.TestConnection(ctx, cfg, creds, e.fetch)
	if err != nil {
		return false, err.Error()
	}
	return success, ""
}

func (e *Executor) decryptConfig(it *store.Integration) (Config, Credentials, error) {
	plaintext, err := e.cipher.Decrypt(it.ConfigEncrypted)
	if err != nil {
		return Config{}, nil, herr.Wrap(herr.KindDecrypt, "decrypt integration config", err)
	}
	var sc storedConfig
	if err := json.Unmarshal(plaintext, &sc); err != nil {
		return Config{}, nil, herr.Wrap(herr.KindInternal, "parse integration config", err)
	}
	return sc.Config, sc.Credentials, nil
}
