package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sondehub/hub/pkg/herr"
)

// CreateApiKey inserts a new API key row. keyHash is the caller-computed
// digest of the bearer secret; the plaintext secret is never persisted.
func (s *Store) CreateApiKey(ctx context.Context, name, keyHash, policyJSON, roleID, keyType, ownerID string, expiresAt *time.Time) (*ApiKey, error) {
	id := uuid.New().String()
	now := time.Now()

	var expiresStr sql.NullString
	if expiresAt != nil {
		expiresStr = sql.NullString{String: formatTime(*expiresAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, name, key_hash, policy_json, role_id, key_type, owner_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, keyHash, policyJSON, roleID, keyType, ownerID, formatTime(now), expiresStr)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return s.GetApiKey(ctx, id)
}

// GetApiKey fetches one key by id.
func (s *Store) GetApiKey(ctx context.Context, id string) (*ApiKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, key_hash, policy_json, role_id, key_type, owner_id, created_at, expires_at, revoked_at, last_used_at
		FROM api_keys WHERE id = ?`, id)
	return scanApiKey(row)
}

// GetApiKeyByHash looks up a key by its precomputed digest, used on every
// authenticated request.
func (s *Store) GetApiKeyByHash(ctx context.Context, keyHash string) (*ApiKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, key_hash, policy_json, role_id, key_type, owner_id, created_at, expires_at, revoked_at, last_used_at
		FROM api_keys WHERE key_hash = ?`, keyHash)
	return scanApiKey(row)
}

func scanApiKey(row rowScanner) (*ApiKey, error) {
	var (
		k                                          ApiKey
		roleID, ownerID                            sql.NullString
		createdAt                                  string
		expiresAt, revokedAt, lastUsedAt           sql.NullString
	)
	if err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.PolicyJSON, &roleID, &k.KeyType, &ownerID,
		&createdAt, &expiresAt, &revokedAt, &lastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, herr.NotFoundf("api key not found")
		}
		return nil, err
	}
	k.RoleID = roleID.String
	k.OwnerID = ownerID.String
	if t, err := parseTime(createdAt); err == nil {
		k.CreatedAt = t
	}
	if t, err := nullableTimePtr(expiresAt); err == nil {
		k.ExpiresAt = t
	}
	if t, err := nullableTimePtr(revokedAt); err == nil {
		k.RevokedAt = t
	}
	if t, err := nullableTimePtr(lastUsedAt); err == nil {
		k.LastUsedAt = t
	}
	return &k, nil
}

// ListApiKeys returns every key, including revoked ones, ordered by name.
func (s *Store) ListApiKeys(ctx context.Context) ([]*ApiKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, key_hash, policy_json, role_id, key_type, owner_id, created_at, expires_at, revoked_at, last_used_at
		FROM api_keys ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*ApiKey
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// TouchApiKeyLastUsed bumps last_used_at; best-effort, called off the
// request-handling hot path.
func (s *Store) TouchApiKeyLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touch api key last used: %w", err)
	}
	return nil
}

// RevokeApiKey marks a key revoked; revocation is permanent and idempotent.
func (s *Store) RevokeApiKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetApiKey(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
