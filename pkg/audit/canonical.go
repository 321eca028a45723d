// Package audit implements the hash-chained append-only ledger: every
// probe execution and every agent interaction writes exactly one row, and
// each row commits to the full previous row so that deleting or reordering
// any entry is detectable (generalises tarsy's pkg/services.InteractionService
// "always write a row" discipline into a chain).
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sondehub/hub/pkg/store"
)

// canonicalize renders an audit row in the fixed field order, timestamp
// format, and whitespace-free form required for the hash chain to
// interoperate bit-for-bit with other implementations (spec.md §9
// "Hash-chain canonicalisation"). The encoding is inclusive of the row's own
// id (Open Question resolved: inclusive — spec.md §9 "the source chooses
// inclusive; any port MUST match bit-for-bit").
func canonicalize(e *store.AuditEntry) []byte {
	return []byte(fmt.Sprintf(
		"%d|%s|%s|%s|%s|%s|%d|%s|%s|%s",
		e.ID,
		e.Timestamp.UTC().Format(canonicalTimeFormat),
		e.APIKeyID,
		e.AgentID,
		e.Probe,
		string(e.Status),
		e.DurationMs,
		e.RequestJSON,
		e.ResponseJSON,
		e.PrevHash,
	))
}

// canonicalTimeFormat is RFC3339 with nanosecond precision, matching the
// precision the store persists (pkg/store's timeFormat).
const canonicalTimeFormat = "2006-01-02T15:04:05.999999999Z07:00"

func hashEntry(e *store.AuditEntry) string {
	sum := sha256.Sum256(canonicalize(e))
	return hex.EncodeToString(sum[:])
}
