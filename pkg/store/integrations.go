package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sondehub/hub/pkg/herr"
)

// CreateIntegration inserts a new integration with encrypted configuration.
// name must be globally unique (spec.md §3 invariant).
func (s *Store) CreateIntegration(ctx context.Context, typ, name, configEncrypted string) (*Integration, error) {
	id := uuid.New().String()
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integrations (id, type, name, config_encrypted, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, typ, name, configEncrypted, string(IntegrationUntested), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create integration: %w", err)
	}
	return s.GetIntegration(ctx, id)
}

// GetIntegration fetches one integration, including its encrypted config.
func (s *Store) GetIntegration(ctx context.Context, id string) (*Integration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, config_encrypted, status, last_tested_at, last_test_result, created_at, updated_at
		FROM integrations WHERE id = ?`, id)
	return scanIntegration(row)
}

func scanIntegration(row rowScanner) (*Integration, error) {
	var (
		it                         Integration
		status                     string
		lastTestedAt, lastResult   sql.NullString
		createdAt, updatedAt       string
	)
	if err := row.Scan(&it.ID, &it.Type, &it.Name, &it.ConfigEncrypted, &status,
		&lastTestedAt, &lastResult, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, herr.NotFoundf("integration not found")
		}
		return nil, err
	}
	it.Status = IntegrationStatus(status)
	it.LastTestResult = lastResult.String
	if ts, err := nullableTimePtr(lastTestedAt); err == nil {
		it.LastTestedAt = ts
	}
	if t, err := parseTime(createdAt); err == nil {
		it.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		it.UpdatedAt = t
	}
	return &it, nil
}

// ListIntegrations returns every configured integration, ordered by name.
func (s *Store) ListIntegrations(ctx context.Context) ([]*Integration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, config_encrypted, status, last_tested_at, last_test_result, created_at, updated_at
		FROM integrations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		it, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration row: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateIntegrationConfig replaces the encrypted configuration blob.
func (s *Store) UpdateIntegrationConfig(ctx context.Context, id, configEncrypted string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE integrations SET config_encrypted = ?, updated_at = ? WHERE id = ?`,
		configEncrypted, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update integration config: %w", err)
	}
	return mustAffectOne(res, "integration")
}

// SetIntegrationTestResult records the outcome of a synchronous test-connection call.
func (s *Store) SetIntegrationTestResult(ctx context.Context, id string, ok bool, result string) error {
	status := IntegrationError
	if ok {
		status = IntegrationOK
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE integrations SET status = ?, last_tested_at = ?, last_test_result = ?, updated_at = ?
		WHERE id = ?`, string(status), formatTime(now), result, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("set integration test result: %w", err)
	}
	return nil
}

// DeleteIntegration removes an integration and cascades its tags
// (spec.md §3 invariant: tags cascade on parent delete).
func (s *Store) DeleteIntegration(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM integrations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_kind = ? AND entity_id = ?`,
		string(EntityIntegration), id); err != nil {
		return false, fmt.Errorf("cascade delete tags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
