// Package enrollment implements one-shot token issuance and consumption
// that gates agent certificate minting (spec.md §4.H). The atomic
// compare-and-set itself lives in pkg/store (a single guarded UPDATE); this
// package wires that primitive to certificate issuance.
package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/herr"
	"github.com/sondehub/hub/pkg/store"
)

// Service issues and consumes enrollment tokens.
type Service struct {
	store  *store.Store
	ca     *crypto.CA
	hubURL string
}

// New constructs an enrollment Service. ca mints agent certificates on
// successful consume; hubURL is returned to the agent so it knows where to
// dial back.
func New(st *store.Store, ca *crypto.CA, hubURL string) *Service {
	return &Service{store: st, ca: ca, hubURL: hubURL}
}

// CreateToken mints a fresh one-shot token valid for ttl.
func (s *Service) CreateToken(ctx context.Context, ttl time.Duration) (*store.EnrollmentToken, error) {
	return s.store.CreateEnrollmentToken(ctx, ttl)
}

// IsValid is a pure read reporting whether token is currently active
// (spec.md §4.H "isValid(token) is pure read").
func (s *Service) IsValid(ctx context.Context, token string) (bool, error) {
	t, err := s.store.GetEnrollmentToken(ctx, token)
	if err != nil {
		if herr.KindOf(err) == herr.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return t.State(time.Now()) == "active", nil
}

// ConsumeResult is returned to the caller of Consume.
type ConsumeResult struct {
	CertPEM   string `json:"cert_pem"`
	CACertPEM string `json:"ca_cert_pem"`
	HubURL    string `json:"hub_url"`
}

// Consume atomically consumes token for agentName and, on success, mints a
// fresh agent client certificate (spec.md §4.H "On successful consume, the
// hub mints an agent certificate ... and returns {certPem, caCertPem,
// hubUrl}").
func (s *Service) Consume(ctx context.Context, token, agentName string) (*ConsumeResult, error) {
	ok, err := s.store.ConsumeEnrollmentToken(ctx, token, agentName)
	if err != nil {
		return nil, fmt.Errorf("consume enrollment token: %w", err)
	}
	if !ok {
		t, getErr := s.store.GetEnrollmentToken(ctx, token)
		if getErr != nil {
			return nil, herr.Conflictf("token already used or expired")
		}
		switch t.State(time.Now()) {
		case "used":
			return nil, herr.Conflictf("token already used")
		case "expired":
			return nil, herr.Conflictf("token expired")
		default:
			return nil, herr.Conflictf("token unavailable")
		}
	}

	certPEM, keyPEM, fingerprint, err := s.ca.IssueAgentCertificate(agentName)
	if err != nil {
		return nil, fmt.Errorf("issue agent certificate: %w", err)
	}

	agent, err := s.store.UpsertAgentByName(ctx, agentName, "", "")
	if err != nil {
		return nil, fmt.Errorf("upsert agent on enrollment: %w", err)
	}
	if err := s.store.SetAgentCertificate(ctx, agent.ID, string(certPEM), fingerprint); err != nil {
		return nil, fmt.Errorf("record agent certificate: %w", err)
	}

	return &ConsumeResult{
		CertPEM:   string(certPEM) + "\n" + string(keyPEM),
		CACertPEM: string(s.ca.CertPEM()),
		HubURL:    s.hubURL,
	}, nil
}
