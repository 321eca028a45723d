package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sondehub/hub/pkg/api"
	"github.com/sondehub/hub/pkg/audit"
	"github.com/sondehub/hub/pkg/config"
	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/dispatcher"
	"github.com/sondehub/hub/pkg/enrollment"
	"github.com/sondehub/hub/pkg/herr"
	"github.com/sondehub/hub/pkg/integration"
	hubmetrics "github.com/sondehub/hub/pkg/metrics"
	"github.com/sondehub/hub/pkg/router"
	"github.com/sondehub/hub/pkg/runbook"
	"github.com/sondehub/hub/pkg/store"
	"github.com/sondehub/hub/pkg/trending"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires every component and blocks until SIGINT/SIGTERM, mirroring
// tarsy's cmd/tarsy/main.go shutdown handling (signal.NotifyContext is a
// stdlib-only choice here — no process-lifecycle library appears anywhere
// in the example pack).
func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ca, err := loadOrInitCA(ctx, st, cfg)
	if err != nil {
		return fmt.Errorf("load hub ca: %w", err)
	}

	m := hubmetrics.New(prometheus.DefaultRegisterer)

	ledger := audit.New(st).WithMetrics(m)
	disp := dispatcher.New(ca)
	defer disp.Stop()
	trackAgentStatusMetrics(disp, m)

	secretCipher, err := hubSecretCipher(cfg)
	if err != nil {
		return fmt.Errorf("build secret cipher: %w", err)
	}

	packs := integration.NewRegistry()
	executor := integration.NewExecutor(packs, secretCipher, 15*time.Second)

	tracker := trending.New(st, cfg.Trending.RetentionWindow, slog.Default())
	if err := tracker.StartEviction(ctx, fmt.Sprintf("@every %s", cfg.Trending.SweepInterval)); err != nil {
		return fmt.Errorf("start trending eviction: %w", err)
	}
	defer tracker.StopEviction()

	rt := router.New(st, ledger, executor, disp, lookupIntegrationFunc(st, packs)).WithTracker(tracker)
	rt.RegisterInternal("hub.health", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"status": "ok", "agents_online": len(disp.ListOnlineAgents())}, nil
	})

	runProbe := func(ctx context.Context, probe string, params map[string]any, agent string) runbook.ProbeOutcome {
		result, err := rt.Execute(ctx, probe, params, agent, "runbook-engine")
		if err != nil {
			return runbook.ProbeOutcome{Probe: probe, Status: "error"}
		}
		return runbook.ProbeOutcome{Probe: probe, Status: result.Status, Data: result.Data, DurationMs: result.DurationMs}
	}
	runbooks := runbook.New(runbook.NewRegistry(), runProbe, disp.ListOnlineAgents)

	enrollSvc := enrollment.New(st, ca, cfg.Enrollment.HubURL)

	pool := x509.NewCertPool()
	pool.AddCert(caCertificate(ca))

	srv := api.New(st, rt, runbooks, enrollSvc, ledger, disp, m, tracker, verifyAgentCert)

	listener, err := tls.Listen("tcp", cfg.Server.ListenAddr, &tls.Config{
		Certificates: []tls.Certificate{hubServerCertificate(ca)},
		ClientCAs:    pool,
		ClientAuth:   tls.VerifyClientCertIfGiven,
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hub server listening", "addr", cfg.Server.ListenAddr)
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// hubSecretCipher builds the cipher used to decrypt stored integration
// credentials. Unlike the hub CA key (which tolerates a plaintext bootstrap
// path), integration configs are never stored unencrypted, so a missing
// hub secret here is a hard startup failure.
func hubSecretCipher(cfg *config.Config) (*crypto.SecretCipher, error) {
	secret, err := cfg.HubSecret()
	if err != nil {
		return nil, fmt.Errorf("hub secret required to decrypt integration credentials: %w", err)
	}
	return crypto.NewSecretCipher(secret)
}

// trackAgentStatusMetrics keeps the /metrics agents-online/agents-degraded
// gauges in sync with dispatcher status transitions, since the dispatcher
// itself has no metrics dependency (spec.md SPEC_FULL.md §4 "agents_online",
// "agents_degraded" gauges).
func trackAgentStatusMetrics(disp *dispatcher.Dispatcher, m *hubmetrics.Metrics) {
	var mu sync.Mutex
	statuses := make(map[string]string)

	disp.OnStatusChange(func(agentName, status string) {
		mu.Lock()
		defer mu.Unlock()

		if status == "offline" {
			delete(statuses, agentName)
		} else {
			statuses[agentName] = status
		}

		var online, degraded int
		for _, s := range statuses {
			switch s {
			case "online":
				online++
			case "degraded":
				degraded++
			}
		}
		m.SetAgentCounts(online, degraded)
	})
}

func lookupIntegrationFunc(st *store.Store, packs *integration.Registry) func(ctx context.Context, probe string) (*store.Integration, bool, error) {
	return func(ctx context.Context, probe string) (*store.Integration, bool, error) {
		return integration.LookupByProbe(ctx, st, packs, probe)
	}
}

// caCertificate re-parses the CA's PEM cert, used as the single entry in
// the mTLS ClientCAs pool (agents are issued certificates signed by this
// same CA, spec.md §4.B).
func caCertificate(ca *crypto.CA) *x509.Certificate {
	block, _ := pem.Decode(ca.CertPEM())
	if block == nil {
		panic("hub ca certificate is not valid PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		panic(fmt.Errorf("parse hub ca certificate: %w", err))
	}
	return cert
}

// hubServerCertificate uses the hub CA's own keypair as the TLS server
// identity. A dedicated server certificate issued by the CA would be more
// conventional, but the hub is its own trust root and there is no external
// browser client validating hostnames against it — agents and operators
// already pin the CA certificate out of band (spec.md §4.B).
func hubServerCertificate(ca *crypto.CA) tls.Certificate {
	cert, err := tls.X509KeyPair(ca.CertPEM(), ca.KeyPEM())
	if err != nil {
		panic(fmt.Errorf("build hub server certificate: %w", err))
	}
	return cert
}

// verifyAgentCert extracts the already mTLS-verified agent identity and
// public key from the request's peer certificate chain (spec.md §4.D
// "registered only after the agent presents a valid client certificate").
// The public key is handed to the dispatcher so it can verify that agent's
// inbound message signatures (spec.md §6 "Signature verification failure
// on an inbound message -> the message is dropped").
func verifyAgentCert(r *http.Request) (string, *rsa.PublicKey, error) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return "", nil, herr.New(herr.KindUnauthed, "agent did not present a client certificate")
	}
	cert := r.TLS.PeerCertificates[0]
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", nil, herr.New(herr.KindUnauthed, "agent certificate does not carry an RSA public key")
	}
	return cert.Subject.CommonName, pub, nil
}

