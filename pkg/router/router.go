// Package router resolves a (probe, agent?) pair to an execution target and
// records its outcome, generalising tarsy's pkg/mcp.SplitToolName
// "server.tool" format resolution from MCP tool routing to hub probe
// routing across integrations, agents, and internal handlers (spec.md §4.F).
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/sondehub/hub/pkg/audit"
	"github.com/sondehub/hub/pkg/herr"
	"github.com/sondehub/hub/pkg/integration"
	"github.com/sondehub/hub/pkg/store"
	"github.com/sondehub/hub/pkg/trending"
)

// InternalHandler serves probes implemented directly by the hub process
// (no agent dial, no integration config) — e.g. "hub.health".
type InternalHandler func(ctx context.Context, params map[string]any) (any, error)

// AgentCaller dispatches a probe call to a connected agent.
type AgentCaller interface {
	IsOnline(agentName string) bool
	Call(ctx context.Context, agentName, method string, params any, timeout time.Duration) (result []byte, err error)
}

// Router holds everything needed to resolve and execute a probe call
// (spec.md §4.F).
type Router struct {
	store             *store.Store
	ledger            *audit.Ledger
	integrations      *integration.Executor
	dispatcher        AgentCaller
	internal          map[string]InternalHandler
	lookupIntegration func(ctx context.Context, probe string) (*store.Integration, bool, error)
	agentTimeout      time.Duration
	tracker           *trending.Tracker
}

// WithTracker attaches the rolling trending store every recorded ProbeResult
// is appended to, instead of writing the store directly (spec.md §4.I). Returns
// the same Router for chaining at construction time.
func (r *Router) WithTracker(t *trending.Tracker) *Router {
	r.tracker = t
	return r
}

// New constructs a Router. lookupIntegration resolves a probe name to the
// integration instance (if any) that serves it; cmd/hubd wires
// pkg/integration.LookupByProbe here.
func New(
	st *store.Store,
	ledger *audit.Ledger,
	integrations *integration.Executor,
	dispatcher AgentCaller,
	lookupIntegration func(ctx context.Context, probe string) (*store.Integration, bool, error),
) *Router {
	return &Router{
		store:             st,
		ledger:            ledger,
		integrations:      integrations,
		dispatcher:        dispatcher,
		internal:          make(map[string]InternalHandler),
		lookupIntegration: lookupIntegration,
		agentTimeout:      30 * time.Second,
	}
}

// RegisterInternal installs a hub-native probe handler.
func (r *Router) RegisterInternal(name string, h InternalHandler) {
	r.internal[name] = h
}

// ExecuteResult is what a caller of Execute observes.
type ExecuteResult struct {
	Status     string `json:"status"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Execute resolves probe against an optional target agent and records both
// a ProbeResult and an AuditEntry for the call, regardless of outcome
// (spec.md §4.F "Every execute records a ProbeResult ... and an
// AuditEntry"). apiKeyID identifies the caller for the audit row.
func (r *Router) Execute(ctx context.Context, probe string, params map[string]any, agentName, apiKeyID string) (ExecuteResult, error) {
	start := time.Now()
	result := r.resolveAndRun(ctx, probe, params, agentName)
	result.DurationMs = time.Since(start).Milliseconds()

	r.recordOutcome(ctx, probe, params, agentName, apiKeyID, result)
	return result, nil
}

func (r *Router) resolveAndRun(ctx context.Context, probe string, params map[string]any, agentName string) ExecuteResult {
	// 1. Internal handler takes priority for hub-native probes.
	if h, ok := r.internal[probe]; ok {
		data, err := h(ctx, params)
		if err != nil {
			return ExecuteResult{Status: "error", Error: err.Error()}
		}
		return ExecuteResult{Status: "ok", Data: data}
	}

	// 2. An explicit agent always wins over an integration match — the
	// caller named a target, so honor it (spec.md §4.F).
	if agentName != "" {
		if !r.dispatcher.IsOnline(agentName) {
			return ExecuteResult{Status: "error", Error: "agent offline"}
		}
		raw, err := r.dispatcher.Call(ctx, agentName, probe, params, r.agentTimeout)
		if err != nil {
			if herr.KindOf(err) == herr.KindTimeout {
				return ExecuteResult{Status: "error", Error: "timeout"}
			}
			return ExecuteResult{Status: "error", Error: err.Error()}
		}
		return ExecuteResult{Status: "ok", Data: string(raw)}
	}

	// 3. No agent named: fall back to a configured integration, if any.
	if r.lookupIntegration != nil {
		it, found, err := r.lookupIntegration(ctx, probe)
		if err != nil {
			return ExecuteResult{Status: "error", Error: err.Error()}
		}
		if found {
			res := r.integrations.Run(ctx, it, probe, params)
			return ExecuteResult{Status: res.Status, Data: res.Data, Error: res.Error}
		}
	}

	// 4. Nothing could resolve this probe.
	return ExecuteResult{Status: "error", Error: fmt.Sprintf("no-route: %s", probe)}
}

func (r *Router) recordOutcome(ctx context.Context, probe string, params map[string]any, agentName, apiKeyID string, result ExecuteResult) {
	status := store.AuditSuccess
	if result.Status == "error" {
		status = store.AuditError
		if result.Error == "timeout" {
			status = store.AuditTimeout
		}
	}

	pr := &store.ProbeResult{
		Probe:      probe,
		Agent:      agentName,
		Status:     string(status),
		DurationMs: result.DurationMs,
		ErrorText:  result.Error,
		Timestamp:  time.Now(),
	}
	if result.Data != nil {
		pr.DataJSON = marshalBestEffort(result.Data)
	}

	var recordErr error
	if r.tracker != nil {
		recordErr = r.tracker.Record(ctx, pr)
	} else {
		recordErr = r.store.InsertProbeResult(ctx, pr)
	}
	if recordErr != nil {
		// Recording failure must not mask the probe's own outcome; the
		// error is discarded and is neither logged nor returned.
		_ = recordErr
	}

	_, _ = r.ledger.Append(ctx, audit.Entry{
		Timestamp:    time.Now(),
		APIKeyID:     apiKeyID,
		AgentID:      agentName,
		Probe:        probe,
		Status:       status,
		DurationMs:   result.DurationMs,
		RequestJSON:  marshalBestEffort(params),
		ResponseJSON: marshalBestEffort(result),
	})
}
