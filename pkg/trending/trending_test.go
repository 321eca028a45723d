package trending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/store"
)

type fakeStore struct {
	rows     []*store.ProbeResult
	evicted  int64
	evictErr error
}

func (f *fakeStore) InsertProbeResult(ctx context.Context, r *store.ProbeResult) error {
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeStore) EvictExpiredProbeResults(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.evictErr != nil {
		return 0, f.evictErr
	}
	kept := f.rows[:0]
	var removed int64
	for _, r := range f.rows {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	f.evicted += removed
	return removed, nil
}

func (f *fakeStore) QueryProbeResultsByProbe(ctx context.Context, probe string, since time.Time) ([]*store.ProbeResult, error) {
	var out []*store.ProbeResult
	for _, r := range f.rows {
		if r.Probe == probe && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) QueryProbeResultsByAgent(ctx context.Context, agent string, since time.Time) ([]*store.ProbeResult, error) {
	var out []*store.ProbeResult
	for _, r := range f.rows {
		if r.Agent == agent && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestTrackerRecordAndAggregateByProbe(t *testing.T) {
	fs := &fakeStore{}
	tr := New(fs, 24*time.Hour, nil)
	ctx := context.Background()

	now := time.Now()
	durations := []int64{10, 20, 30, 40, 100}
	for i, d := range durations {
		status := string(store.AuditSuccess)
		if i == len(durations)-1 {
			status = string(store.AuditError)
		}
		require.NoError(t, tr.Record(ctx, &store.ProbeResult{
			Probe: "disk.usage", Status: status, DurationMs: d, Timestamp: now,
		}))
	}

	agg, err := tr.AggregateByProbe(ctx, "disk.usage", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, agg.Count)
	assert.InDelta(t, 0.8, agg.SuccessRate, 0.001)
	assert.Equal(t, int64(30), agg.P50Ms)
	assert.Equal(t, int64(100), agg.P95Ms)
}

func TestTrackerAggregateByProbeEmpty(t *testing.T) {
	fs := &fakeStore{}
	tr := New(fs, 24*time.Hour, nil)
	agg, err := tr.AggregateByProbe(context.Background(), "no.such.probe", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Aggregate{}, agg)
}

func TestTrackerSweepEvictsOldRows(t *testing.T) {
	fs := &fakeStore{}
	tr := New(fs, time.Hour, nil)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now()
	require.NoError(t, fs.InsertProbeResult(ctx, &store.ProbeResult{Probe: "p", Timestamp: old}))
	require.NoError(t, fs.InsertProbeResult(ctx, &store.ProbeResult{Probe: "p", Timestamp: fresh}))

	tr.sweep(ctx)

	assert.Len(t, fs.rows, 1)
	assert.Equal(t, fresh, fs.rows[0].Timestamp)
}
