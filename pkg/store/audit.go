package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sondehub/hub/pkg/herr"
)

// AppendAuditEntry inserts one ledger row. prevHash must already have been
// computed by the caller (pkg/audit owns the chaining rule); this layer only
// persists it. The id is AUTOINCREMENT so rows form a strict append order.
func (s *Store) AppendAuditEntry(ctx context.Context, e *AuditEntry) (*AuditEntry, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(timestamp, api_key_id, agent_id, probe, status, duration_ms, request_json, response_json, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(e.Timestamp), e.APIKeyID, e.AgentID, e.Probe, string(e.Status),
		e.DurationMs, e.RequestJSON, e.ResponseJSON, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAuditEntry(ctx, id)
}

// GetAuditEntry fetches a single ledger row by id.
func (s *Store) GetAuditEntry(ctx context.Context, id int64) (*AuditEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, api_key_id, agent_id, probe, status, duration_ms, request_json, response_json, prev_hash
		FROM audit_entries WHERE id = ?`, id)
	return scanAuditEntry(row)
}

// GetLastAuditEntry returns the most recently appended row, or nil if the
// ledger is empty (the genesis row's prev_hash is the empty string).
func (s *Store) GetLastAuditEntry(ctx context.Context) (*AuditEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, api_key_id, agent_id, probe, status, duration_ms, request_json, response_json, prev_hash
		FROM audit_entries ORDER BY id DESC LIMIT 1`)
	entry, err := scanAuditEntry(row)
	if err != nil {
		if herr.KindOf(err) == herr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func scanAuditEntry(row rowScanner) (*AuditEntry, error) {
	var (
		e                        AuditEntry
		status                   string
		apiKeyID, agentID        sql.NullString
		reqJSON, respJSON        sql.NullString
		timestamp                string
	)
	if err := row.Scan(&e.ID, &timestamp, &apiKeyID, &agentID, &e.Probe, &status,
		&e.DurationMs, &reqJSON, &respJSON, &e.PrevHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herr.NotFoundf("audit entry not found")
		}
		return nil, err
	}
	e.Status = AuditStatus(status)
	e.APIKeyID = apiKeyID.String
	e.AgentID = agentID.String
	e.RequestJSON = reqJSON.String
	e.ResponseJSON = respJSON.String
	if t, err := parseTime(timestamp); err == nil {
		e.Timestamp = t
	}
	return &e, nil
}

// ListAuditEntries returns ledger rows in ascending id order, the order the
// chain must be walked for verification (spec.md §4.C).
func (s *Store) ListAuditEntries(ctx context.Context, afterID int64, limit int) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, api_key_id, agent_id, probe, status, duration_ms, request_json, response_json, prev_hash
		FROM audit_entries WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
