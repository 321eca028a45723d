package runbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunProbe(outcomes map[string]ProbeOutcome) RunProbe {
	return func(ctx context.Context, probe string, params map[string]any, agent string) ProbeOutcome {
		if o, ok := outcomes[probe]; ok {
			return o
		}
		return ProbeOutcome{Probe: probe, Status: "ok"}
	}
}

func TestEngineManifestPartialFailureStillRunsRemainingProbes(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterManifest(ManifestRunbook{
		Category: "disk-triage",
		Probes:   []string{"probe.unreachable", "probe.ok-1", "probe.ok-2"},
		Parallel: false,
	})

	outcomes := map[string]ProbeOutcome{
		"probe.unreachable": {Probe: "probe.unreachable", Status: "error"},
	}
	engine := New(reg, fakeRunProbe(outcomes), func() []string { return nil })

	result, err := engine.Run(context.Background(), "disk-triage", nil, "srv-01")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ProbesRun)
	assert.GreaterOrEqual(t, result.ProbesFailed, 1)
	assert.Equal(t, 2, result.ProbesSucceeded)
}

func TestEngineManifestMissingRequiredParamReturnsCriticalAndRunsNothing(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterManifest(ManifestRunbook{
		Category:    "scoped-triage",
		Probes:      []string{"probe.a", "probe.b"},
		RequiredKey: []string{"namespace"},
	})

	called := 0
	runProbe := func(ctx context.Context, probe string, params map[string]any, agent string) ProbeOutcome {
		called++
		return ProbeOutcome{Probe: probe, Status: "ok"}
	}
	engine := New(reg, runProbe, func() []string { return nil })

	result, err := engine.Run(context.Background(), "scoped-triage", map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, called)
	assert.Equal(t, 1, result.FindingsCount.Critical)
	assert.Equal(t, 0, result.ProbesRun)
}

func TestEngineDiagnosticHandlerErrorSynthesizesCriticalFinding(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDiagnostic("node-health", func(ctx context.Context, params map[string]any, runProbe RunProbe, connected ConnectedAgents) ([]Finding, error) {
		return nil, errors.New("handler blew up")
	})
	engine := New(reg, fakeRunProbe(nil), func() []string { return nil })

	result, err := engine.Run(context.Background(), "node-health", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.FindingsCount.Critical)
	assert.Contains(t, result.Findings[0].Detail, "handler blew up")
}

func TestEngineDiagnosticDuplicateFindingsPreserved(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDiagnostic("repeat-check", func(ctx context.Context, params map[string]any, runProbe RunProbe, connected ConnectedAgents) ([]Finding, error) {
		return []Finding{
			{Severity: SeverityWarning, Title: "high latency", Detail: "probe A"},
			{Severity: SeverityWarning, Title: "high latency", Detail: "probe B"},
		}, nil
	})
	engine := New(reg, fakeRunProbe(nil), func() []string { return nil })

	result, err := engine.Run(context.Background(), "repeat-check", nil, "")
	require.NoError(t, err)
	assert.Len(t, result.Findings, 2)
	assert.Equal(t, 2, result.FindingsCount.Warning)
}

func TestEngineUnknownCategoryErrors(t *testing.T) {
	reg := NewRegistry()
	engine := New(reg, fakeRunProbe(nil), func() []string { return nil })

	_, err := engine.Run(context.Background(), "does-not-exist", nil, "")
	require.Error(t, err)
}
