package runbook

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Engine executes runbooks by category (spec.md §4.G "run(category, params)").
type Engine struct {
	registry        *Registry
	runProbe        RunProbe
	connectedAgents ConnectedAgents
}

// New constructs an Engine. runProbe and connectedAgents are the two
// capabilities diagnostic handlers receive (spec.md §4.G).
func New(registry *Registry, runProbe RunProbe, connectedAgents ConnectedAgents) *Engine {
	return &Engine{registry: registry, runProbe: runProbe, connectedAgents: connectedAgents}
}

// Run executes the named runbook and returns its synthesized result.
func (e *Engine) Run(ctx context.Context, category string, params map[string]any, agent string) (Result, error) {
	start := time.Now()

	manifest, handler, err := e.registry.lookup(category)
	if err != nil {
		return Result{}, err
	}

	if handler != nil {
		return e.runDiagnostic(ctx, category, params, handler, start)
	}
	return e.runManifest(ctx, manifest, params, agent, start), nil
}

func (e *Engine) runManifest(ctx context.Context, rb ManifestRunbook, params map[string]any, agent string, start time.Time) Result {
	if missing := firstMissingParam(rb.RequiredKey, params); missing != "" {
		return Result{
			Category:      rb.Category,
			FindingsCount: FindingsCount{Critical: 1},
			DurationMs:    time.Since(start).Milliseconds(),
			SummaryText:   fmt.Sprintf("missing required parameter %q", missing),
			Findings: []Finding{{
				Severity: SeverityCritical,
				Title:    "missing required parameter",
				Detail:   fmt.Sprintf("runbook %q requires parameter %q", rb.Category, missing),
			}},
		}
	}

	var outcomes []ProbeOutcome
	if rb.Parallel {
		outcomes = e.runProbesParallel(ctx, rb.Probes, params, agent)
	} else {
		outcomes = e.runProbesSequential(ctx, rb.Probes, params, agent)
	}

	succeeded, failed := tallyOutcomes(outcomes)
	return Result{
		Category:        rb.Category,
		ProbesRun:       len(outcomes),
		ProbesSucceeded: succeeded,
		ProbesFailed:    failed,
		DurationMs:      time.Since(start).Milliseconds(),
		SummaryText:     fmt.Sprintf("%d/%d probes succeeded", succeeded, len(outcomes)),
		Probes:          outcomes,
	}
}

func (e *Engine) runDiagnostic(ctx context.Context, category string, params map[string]any, handler DiagnosticHandler, start time.Time) (Result, error) {
	findings, err := handler(ctx, params, e.runProbe, e.connectedAgents)
	if err != nil {
		// Handler-thrown errors synthesize a critical finding rather than
		// failing the runbook response (spec.md §4.G tie-break policy).
		return Result{
			Category:      category,
			FindingsCount: FindingsCount{Critical: 1},
			DurationMs:    time.Since(start).Milliseconds(),
			SummaryText:   fmt.Sprintf("handler error: %v", err),
			Findings: []Finding{{
				Severity: SeverityCritical,
				Title:    "runbook handler error",
				Detail:   err.Error(),
			}},
		}, nil
	}

	return Result{
		Category:      category,
		FindingsCount: countBySeverity(findings),
		DurationMs:    time.Since(start).Milliseconds(),
		SummaryText:   fmt.Sprintf("%d findings", len(findings)),
		Findings:      findings,
	}, nil
}

func (e *Engine) runProbesSequential(ctx context.Context, probes []string, params map[string]any, agent string) []ProbeOutcome {
	outcomes := make([]ProbeOutcome, 0, len(probes))
	for _, p := range probes {
		outcomes = append(outcomes, e.runProbe(ctx, p, params, agent))
	}
	return outcomes
}

func (e *Engine) runProbesParallel(ctx context.Context, probes []string, params map[string]any, agent string) []ProbeOutcome {
	outcomes := make([]ProbeOutcome, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, probe string) {
			defer wg.Done()
			outcomes[i] = e.runProbe(ctx, probe, params, agent)
		}(i, p)
	}
	wg.Wait()
	return outcomes
}

func tallyOutcomes(outcomes []ProbeOutcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Status == "ok" {
			succeeded++
		} else {
			failed++
		}
	}
	return
}

func countBySeverity(findings []Finding) FindingsCount {
	var c FindingsCount
	for _, f := range findings {
		switch f.Severity {
		case SeverityInfo:
			c.Info++
		case SeverityWarning:
			c.Warning++
		case SeverityCritical:
			c.Critical++
		}
	}
	return c
}

func firstMissingParam(required []string, params map[string]any) string {
	for _, key := range required {
		if _, ok := params[key]; !ok {
			return key
		}
	}
	return ""
}
