// Package store is the single embedded relational store for the hub
// (spec.md §4.A): prepared-statement CRUD over a SQLite database file with
// WAL journalling and foreign keys on, schema evolved through numbered
// migrations applied inside a transaction at startup.
package store

import "time"

// AgentStatus mirrors spec.md §3's Agent.status domain.
type AgentStatus string

const (
	AgentOnline   AgentStatus = "online"
	AgentDegraded AgentStatus = "degraded"
	AgentOffline  AgentStatus = "offline"
)

// Pack describes one capability bundle reported by an agent.
type Pack struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// Agent is the persisted representation of spec.md §3's Agent entity.
type Agent struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Status              AgentStatus `json:"status"`
	LastSeen            *time.Time  `json:"last_seen,omitempty"`
	OS                  string      `json:"os,omitempty"`
	AgentVersion        string      `json:"agent_version,omitempty"`
	Packs               []Pack      `json:"packs"`
	CertPEM             string      `json:"cert_pem,omitempty"`
	CertFingerprint     string      `json:"cert_fingerprint,omitempty"`
	AttestationJSON     string      `json:"attestation_json,omitempty"`
	AttestationMismatch bool        `json:"attestation_mismatch"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IntegrationStatus mirrors spec.md §3's Integration.status domain.
type IntegrationStatus string

const (
	IntegrationUntested IntegrationStatus = "untested"
	IntegrationOK       IntegrationStatus = "ok"
	IntegrationError    IntegrationStatus = "error"
)

// Integration is the persisted representation of spec.md §3's Integration entity.
// ConfigEncrypted is opaque ciphertext; only the integration executor decrypts it.
type Integration struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Name            string            `json:"name"`
	ConfigEncrypted string            `json:"-"`
	Status          IntegrationStatus `json:"status"`
	LastTestedAt    *time.Time        `json:"last_tested_at,omitempty"`
	LastTestResult  string            `json:"last_test_result,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// EntityKind identifies which table a Tag row belongs to.
type EntityKind string

const (
	EntityAgent       EntityKind = "agent"
	EntityIntegration EntityKind = "integration"
)

// AuditStatus mirrors spec.md §3's AuditEntry.status domain.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
	AuditTimeout AuditStatus = "timeout"
)

// AuditEntry is one row of the hash-chained audit ledger (spec.md §3, §4.C).
type AuditEntry struct {
	ID           int64       `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	APIKeyID     string      `json:"api_key_id,omitempty"`
	AgentID      string      `json:"agent_id,omitempty"`
	Probe        string      `json:"probe"`
	Status       AuditStatus `json:"status"`
	DurationMs   int64       `json:"duration_ms"`
	RequestJSON  string      `json:"request_json,omitempty"`
	ResponseJSON string      `json:"response_json,omitempty"`
	PrevHash     string      `json:"prev_hash"`
}

// EnrollmentToken is a one-shot token gating agent certificate issuance
// (spec.md §3, §4.H).
type EnrollmentToken struct {
	Token       string     `json:"token"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	UsedByAgent string     `json:"used_by_agent,omitempty"`
}

// State reports the token's lifecycle position.
func (t EnrollmentToken) State(now time.Time) string {
	if t.UsedAt != nil {
		return "used"
	}
	if now.After(t.ExpiresAt) {
		return "expired"
	}
	return "active"
}

// HubCA is the singleton row holding the CA certificate and its (possibly
// encrypted) private key (spec.md §3).
type HubCA struct {
	CertPEM   string
	KeyPEM    string // legacy plaintext, empty if KeyPEMEnc is set
	KeyPEMEnc string // ciphertext, empty if KeyPEM is set
	CreatedAt time.Time
}

// Valid reports whether the row carries a usable key in either form.
func (c HubCA) Valid() bool {
	return c.CertPEM != "" && (c.KeyPEM != "" || c.KeyPEMEnc != "")
}

// ProbeResult is one row of the 24-hour rolling trending store (spec.md §3, §4.I).
type ProbeResult struct {
	ID            int64     `json:"id"`
	Probe         string    `json:"probe"`
	Agent         string    `json:"agent,omitempty"`
	IntegrationID string    `json:"integration_id,omitempty"`
	Status        string    `json:"status"`
	DurationMs    int64     `json:"duration_ms"`
	DataJSON      string    `json:"data_json,omitempty"`
	ErrorText     string    `json:"error_text,omitempty"`
	Timestamp     time.Time `json:"ts"`
}

// ApiKey is the persisted representation of spec.md §3's ApiKey entity.
type ApiKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	PolicyJSON string     `json:"policy_json"`
	RoleID     string     `json:"role_id,omitempty"`
	KeyType    string     `json:"key_type"`
	OwnerID    string     `json:"owner_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
