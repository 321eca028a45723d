package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	hubmetrics "github.com/sondehub/hub/pkg/metrics"
	"github.com/sondehub/hub/pkg/store"
)

// Ledger appends to and verifies the hash-chained audit table backed by a Store.
type Ledger struct {
	mu      sync.Mutex // serialises Append's read-then-insert
	store   *store.Store
	metrics *hubmetrics.Metrics
}

// New constructs a Ledger over an already-open Store.
func New(s *store.Store) *Ledger { return &Ledger{store: s} }

// WithMetrics attaches a metrics recorder, incremented on every successful
// Append (spec.md SPEC_FULL.md §4 "sonde_hub_audit_entries_total"). Returns
// the same Ledger for chaining at construction time.
func (l *Ledger) WithMetrics(m *hubmetrics.Metrics) *Ledger {
	l.metrics = m
	return l
}

// Entry is the caller-supplied content of one ledger row; PrevHash and ID are
// computed/assigned by Append.
type Entry struct {
	Timestamp    time.Time
	APIKeyID     string
	AgentID      string
	Probe        string
	Status       store.AuditStatus
	DurationMs   int64
	RequestJSON  string
	ResponseJSON string
}

// Append computes prevHash from the current last row and inserts the new
// row (spec.md §4.C steps 1-3). The read and the insert are two separate
// store calls, not one database transaction; Append holds the Ledger's
// mutex across both, so concurrent Appends on the same Ledger cannot chain
// onto the same last row. Writes to the audit table that bypass this Ledger
// are not serialised with it.
func (l *Ledger) Append(ctx context.Context, in Entry) (*store.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.store.GetLastAuditEntry(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last audit entry: %w", err)
	}

	prevHash := ""
	if last != nil {
		prevHash = hashEntry(last)
	}

	e := &store.AuditEntry{
		Timestamp:    in.Timestamp,
		APIKeyID:     in.APIKeyID,
		AgentID:      in.AgentID,
		Probe:        in.Probe,
		Status:       in.Status,
		DurationMs:   in.DurationMs,
		RequestJSON:  in.RequestJSON,
		ResponseJSON: in.ResponseJSON,
		PrevHash:     prevHash,
	}

	appended, err := l.store.AppendAuditEntry(ctx, e)
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.RecordAuditAppend()
	}
	return appended, nil
}

// VerifyResult reports whether the chain is intact, and if not, the id of
// the first row whose prevHash diverges from the recomputation.
type VerifyResult struct {
	Valid    bool  `json:"valid"`
	BrokenAt int64 `json:"brokenAt,omitempty"`
}

// Verify walks the ledger in ascending id order, recomputing each expected
// prevHash from the preceding row and comparing. An empty ledger verifies
// trivially (spec.md §8 scenario 1).
func (l *Ledger) Verify(ctx context.Context) (VerifyResult, error) {
	const pageSize = 500

	expectedPrevHash := ""
	afterID := int64(0)

	for {
		rows, err := l.store.ListAuditEntries(ctx, afterID, pageSize)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("list audit entries: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if row.PrevHash != expectedPrevHash {
				return VerifyResult{Valid: false, BrokenAt: row.ID}, nil
			}
			expectedPrevHash = hashEntry(row)
			afterID = row.ID
		}
	}

	return VerifyResult{Valid: true}, nil
}
