package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sondehub/hub/pkg/herr"
)

// UpsertAgentByName creates the agent row if name is new, or rewrites its id
// and refreshes metadata if name already exists. Agents identify themselves
// by name at enrollment, so name — not id — is the stable identifier
// (spec.md §9 Open Question, resolved: upsert-by-name rewrites id).
func (s *Store) UpsertAgentByName(ctx context.Context, name, os, agentVersion string) (*Agent, error) {
	now := time.Now()
	existing, err := s.GetAgentByName(ctx, name)
	if err != nil && herr.KindOf(err) != herr.KindNotFound {
		return nil, err
	}

	id := uuid.New().String()
	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
	}

	packsJSON := "[]"
	if existing != nil {
		if b, err := json.Marshal(existing.Packs); err == nil {
			packsJSON = string(b)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, status, os, agent_version, packs_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			os = excluded.os,
			agent_version = excluded.agent_version,
			updated_at = excluded.updated_at
	`, id, name, string(AgentOffline), os, agentVersion, packsJSON, formatTime(createdAt), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("upsert agent: %w", err)
	}

	return s.GetAgentByName(ctx, name)
}

// GetAgent fetches an agent by its id.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	return s.queryAgent(ctx, "id = ?", id)
}

// GetAgentByName fetches an agent by its unique name.
func (s *Store) GetAgentByName(ctx context.Context, name string) (*Agent, error) {
	return s.queryAgent(ctx, "name = ?", name)
}

func (s *Store) queryAgent(ctx context.Context, where string, arg any) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, last_seen, os, agent_version, packs_json,
		       cert_pem, cert_fingerprint, attestation_json, attestation_mismatch,
		       created_at, updated_at
		FROM agents WHERE `+where, arg)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, herr.NotFoundf("agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	return agent, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var (
		a                   Agent
		status              string
		lastSeen            sql.NullString
		os, version         sql.NullString
		packsJSON           string
		certPEM, fingerprint sql.NullString
		attestation         sql.NullString
		mismatch            int
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Name, &status, &lastSeen, &os, &version, &packsJSON,
		&certPEM, &fingerprint, &attestation, &mismatch, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Status = AgentStatus(status)
	a.OS = os.String
	a.AgentVersion = version.String
	a.CertPEM = certPEM.String
	a.CertFingerprint = fingerprint.String
	a.AttestationJSON = attestation.String
	a.AttestationMismatch = mismatch != 0
	_ = json.Unmarshal([]byte(packsJSON), &a.Packs)

	if ls, err := nullableTimePtr(lastSeen); err == nil {
		a.LastSeen = ls
	}
	if t, err := parseTime(createdAt); err == nil {
		a.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		a.UpdatedAt = t
	}
	return &a, nil
}

// ListAgents returns all agents ordered by name.
func (s *Store) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, last_seen, os, agent_version, packs_json,
		       cert_pem, cert_fingerprint, attestation_json, attestation_mismatch,
		       created_at, updated_at
		FROM agents ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SetAgentStatus updates an agent's connectivity status (dispatcher-owned).
func (s *Store) SetAgentStatus(ctx context.Context, id string, status AgentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	return mustAffectOne(res, "agent")
}

// SetAgentLastSeen bumps the heartbeat timestamp.
func (s *Store) SetAgentLastSeen(ctx context.Context, id string, when time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET last_seen = ?, updated_at = ? WHERE id = ?`,
		formatTime(when), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set agent last seen: %w", err)
	}
	return nil
}

// SetAgentAttestation stores the agent-reported attestation blob and whether
// it mismatches the hub's expectation.
func (s *Store) SetAgentAttestation(ctx context.Context, id, attestationJSON string, mismatch bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agents SET attestation_json = ?, attestation_mismatch = ?, updated_at = ? WHERE id = ?`,
		attestationJSON, boolToInt(mismatch), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set agent attestation: %w", err)
	}
	return nil
}

// SetAgentPacks replaces the agent's reported capability packs.
func (s *Store) SetAgentPacks(ctx context.Context, id string, packs []Pack) error {
	b, err := json.Marshal(packs)
	if err != nil {
		return fmt.Errorf("marshal packs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE agents SET packs_json = ?, updated_at = ? WHERE id = ?`,
		string(b), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set agent packs: %w", err)
	}
	return nil
}

// SetAgentCertificate records the certificate minted for this agent.
func (s *Store) SetAgentCertificate(ctx context.Context, id, certPEM, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agents SET cert_pem = ?, cert_fingerprint = ?, updated_at = ? WHERE id = ?`,
		certPEM, fingerprint, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set agent certificate: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustAffectOne(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return herr.NotFoundf("%s not found", entity)
	}
	return nil
}
