// Package trending maintains the 24-hour rolling probe-result store and
// serves the aggregate queries pkg/api's trending endpoints read
// (spec.md §4.I). Eviction runs on a github.com/robfig/cron/v3 schedule,
// mirroring the cron-expression scheduling r3e-network-service_layer's
// automation service exposes to its callers.
package trending

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sondehub/hub/pkg/store"
)

// Store is the subset of *store.Store the trending layer depends on.
type Store interface {
	InsertProbeResult(ctx context.Context, r *store.ProbeResult) error
	EvictExpiredProbeResults(ctx context.Context, cutoff time.Time) (int64, error)
	QueryProbeResultsByProbe(ctx context.Context, probe string, since time.Time) ([]*store.ProbeResult, error)
	QueryProbeResultsByAgent(ctx context.Context, agent string, since time.Time) ([]*store.ProbeResult, error)
}

// Tracker records probe outcomes and evicts rows that have aged out of the
// retention window.
type Tracker struct {
	store     Store
	retention time.Duration
	logger    *slog.Logger

	cron  *cron.Cron
	entry cron.EntryID
}

// New constructs a Tracker. retention is how long a row survives before
// eviction (spec.md default: 24h).
func New(st Store, retention time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: st, retention: retention, logger: logger}
}

// Record appends one probe outcome to the rolling store.
func (t *Tracker) Record(ctx context.Context, r *store.ProbeResult) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return t.store.InsertProbeResult(ctx, r)
}

// StartEviction schedules the eviction sweep on a cron expression (e.g.
// "*/15 * * * *" for every 15 minutes) and runs one sweep immediately so a
// freshly started hub isn't carrying stale rows until the first tick
// (spec.md §4.I "sweep runs on startup and then on a fixed cadence").
func (t *Tracker) StartEviction(ctx context.Context, schedule string) error {
	t.sweep(ctx)

	c := cron.New()
	id, err := c.AddFunc(schedule, func() { t.sweep(ctx) })
	if err != nil {
		return err
	}
	t.cron = c
	t.entry = id
	c.Start()
	return nil
}

// StopEviction stops the cron scheduler, if running.
func (t *Tracker) StopEviction() {
	if t.cron != nil {
		t.cron.Stop()
	}
}

func (t *Tracker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-t.retention)
	n, err := t.store.EvictExpiredProbeResults(ctx, cutoff)
	if err != nil {
		t.logger.Error("trending eviction sweep failed", "error", err)
		return
	}
	if n > 0 {
		t.logger.Info("evicted expired probe results", "count", n, "cutoff", cutoff)
	}
}

// Aggregate summarizes retained rows for one probe or agent.
type Aggregate struct {
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate"`
	P50Ms       int64   `json:"p50_ms"`
	P95Ms       int64   `json:"p95_ms"`
}

// AggregateByProbe computes success rate and latency percentiles for probe
// over the retained rows since `since`.
func (t *Tracker) AggregateByProbe(ctx context.Context, probe string, since time.Time) (Aggregate, error) {
	rows, err := t.store.QueryProbeResultsByProbe(ctx, probe, since)
	if err != nil {
		return Aggregate{}, err
	}
	return summarize(rows), nil
}

// AggregateByAgent computes success rate and latency percentiles for agent
// over the retained rows since `since`.
func (t *Tracker) AggregateByAgent(ctx context.Context, agent string, since time.Time) (Aggregate, error) {
	rows, err := t.store.QueryProbeResultsByAgent(ctx, agent, since)
	if err != nil {
		return Aggregate{}, err
	}
	return summarize(rows), nil
}

func summarize(rows []*store.ProbeResult) Aggregate {
	if len(rows) == 0 {
		return Aggregate{}
	}

	durations := make([]int64, len(rows))
	successes := 0
	for i, r := range rows {
		durations[i] = r.DurationMs
		if r.Status == string(store.AuditSuccess) {
			successes++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	return Aggregate{
		Count:       len(rows),
		SuccessRate: float64(successes) / float64(len(rows)),
		P50Ms:       percentile(durations, 0.50),
		P95Ms:       percentile(durations, 0.95),
	}
}

// percentile expects a sorted ascending slice and uses the nearest-rank
// method: the smallest value with at least p of the samples at or below it.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
