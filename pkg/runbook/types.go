// Package runbook implements the runbook engine: manifest-driven probe
// compositions and diagnostic handler functions that synthesize findings
// from one or more probe calls (spec.md §4.G). Concurrent execution is
// grounded on tarsy's pkg/queue.WorkerPool goroutine/WaitGroup discipline,
// generalised from session workers to parallel probe steps.
package runbook

import "context"

// Severity classifies a finding's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is one observation produced by a diagnostic handler
// (spec.md GLOSSARY "Finding").
type Finding struct {
	Severity      Severity `json:"severity"`
	Title         string   `json:"title"`
	Detail        string   `json:"detail"`
	Remediation   string   `json:"remediation,omitempty"`
	RelatedProbes []string `json:"related_probes,omitempty"`
}

// ProbeOutcome is one probe's recorded result within a runbook run.
type ProbeOutcome struct {
	Probe      string `json:"probe"`
	Status     string `json:"status"`
	Data       any    `json:"data,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// RunProbe is the function a diagnostic handler uses to invoke a probe,
// injected by the engine (spec.md §4.G "the handler invokes
// runProbe(probe, params?, agent?) as many times as it likes").
type RunProbe func(ctx context.Context, probe string, params map[string]any, agent string) ProbeOutcome

// ConnectedAgents lists the agents currently online, injected alongside RunProbe.
type ConnectedAgents func() []string

// DiagnosticHandler is a domain-specific composition function that drives
// probes and synthesizes findings.
type DiagnosticHandler func(ctx context.Context, params map[string]any, runProbe RunProbe, connected ConnectedAgents) ([]Finding, error)

// ManifestRunbook declares a simple probe composition with no custom logic
// (spec.md §4.G "manifest-driven runbooks").
type ManifestRunbook struct {
	Category    string   `json:"category"`
	Probes      []string `json:"probes"`
	Parallel    bool     `json:"parallel"`
	RequiredKey []string `json:"required_params,omitempty"`
}

// FindingsCount tallies findings by severity.
type FindingsCount struct {
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// Result is the full response of one runbook invocation
// (spec.md §4.G "DiagnosticRunbookResult").
type Result struct {
	Category        string         `json:"category"`
	ProbesRun       int            `json:"probes_run"`
	ProbesSucceeded int            `json:"probes_succeeded"`
	ProbesFailed    int            `json:"probes_failed"`
	FindingsCount   FindingsCount  `json:"findings_count"`
	DurationMs      int64          `json:"duration_ms"`
	SummaryText     string         `json:"summary_text"`
	Probes          []ProbeOutcome `json:"probes,omitempty"`
	Findings        []Finding      `json:"findings,omitempty"`
}
