package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertProbeResult appends one row to the 24-hour rolling trending store
// (spec.md §4.I).
func (s *Store) InsertProbeResult(ctx context.Context, r *ProbeResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO probe_results (probe, agent, integration_id, status, duration_ms, data_json, error_text, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Probe, r.Agent, r.IntegrationID, r.Status, r.DurationMs, r.DataJSON, r.ErrorText, formatTime(r.Timestamp))
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}
	return nil
}

// EvictExpiredProbeResults deletes rows older than cutoff, returning the
// number removed. Run on a cron cadence by pkg/trending (spec.md §4.I).
func (s *Store) EvictExpiredProbeResults(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM probe_results WHERE ts < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("evict expired probe results: %w", err)
	}
	return res.RowsAffected()
}

// QueryProbeResultsByProbe returns retained rows for one probe, newest first.
func (s *Store) QueryProbeResultsByProbe(ctx context.Context, probe string, since time.Time) ([]*ProbeResult, error) {
	return s.queryProbeResults(ctx, `probe = ? AND ts >= ? ORDER BY ts DESC`, probe, formatTime(since))
}

// QueryProbeResultsByAgent returns retained rows for one agent, newest first.
func (s *Store) QueryProbeResultsByAgent(ctx context.Context, agent string, since time.Time) ([]*ProbeResult, error) {
	return s.queryProbeResults(ctx, `agent = ? AND ts >= ? ORDER BY ts DESC`, agent, formatTime(since))
}

func (s *Store) queryProbeResults(ctx context.Context, where string, args ...any) ([]*ProbeResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, probe, agent, integration_id, status, duration_ms, data_json, error_text, ts
		FROM probe_results WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query probe results: %w", err)
	}
	defer rows.Close()

	var out []*ProbeResult
	for rows.Next() {
		var (
			r                         ProbeResult
			agent, integrationID      sql.NullString
			dataJSON, errText         sql.NullString
			ts                        string
		)
		if err := rows.Scan(&r.ID, &r.Probe, &agent, &integrationID, &r.Status,
			&r.DurationMs, &dataJSON, &errText, &ts); err != nil {
			return nil, fmt.Errorf("scan probe result: %w", err)
		}
		r.Agent = agent.String
		r.IntegrationID = integrationID.String
		r.DataJSON = dataJSON.String
		r.ErrorText = errText.String
		if t, err := parseTime(ts); err == nil {
			r.Timestamp = t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
