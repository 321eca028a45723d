package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sondehub/hub/pkg/herr"
)

// CreateEnrollmentToken mints a new one-shot token valid for ttl.
func (s *Store) CreateEnrollmentToken(ctx context.Context, ttl time.Duration) (*EnrollmentToken, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrollment_tokens (token, created_at, expires_at) VALUES (?, ?, ?)`,
		token, formatTime(now), formatTime(expiresAt))
	if err != nil {
		return nil, fmt.Errorf("create enrollment token: %w", err)
	}

	return &EnrollmentToken{Token: token, CreatedAt: now, ExpiresAt: expiresAt}, nil
}

// GetEnrollmentToken fetches a token row for inspection (IsValid checks).
func (s *Store) GetEnrollmentToken(ctx context.Context, token string) (*EnrollmentToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, created_at, expires_at, used_at, used_by_agent
		FROM enrollment_tokens WHERE token = ?`, token)
	return scanEnrollmentToken(row)
}

func scanEnrollmentToken(row rowScanner) (*EnrollmentToken, error) {
	var (
		t                    EnrollmentToken
		createdAt, expiresAt string
		usedAt, usedByAgent  sql.NullString
	)
	if err := row.Scan(&t.Token, &createdAt, &expiresAt, &usedAt, &usedByAgent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herr.NotFoundf("enrollment token not found")
		}
		return nil, err
	}
	if ts, err := parseTime(createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := parseTime(expiresAt); err == nil {
		t.ExpiresAt = ts
	}
	if ts, err := nullableTimePtr(usedAt); err == nil {
		t.UsedAt = ts
	}
	t.UsedByAgent = usedByAgent.String
	return &t, nil
}

// ConsumeEnrollmentToken atomically marks a token used, iff it is still
// unused and unexpired. The compare-and-set is expressed as a single UPDATE
// guarded by the predicate, checked via RowsAffected — no read-then-write
// race window (spec.md §4.H, §8 "second consume of the same token fails").
func (s *Store) ConsumeEnrollmentToken(ctx context.Context, token, agentName string) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollment_tokens
		SET used_at = ?, used_by_agent = ?
		WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		formatTime(now), agentName, token, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("consume enrollment token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
