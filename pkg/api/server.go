// Package api provides the hub's caller-facing HTTP surface and the
// agent-facing WebSocket upgrade endpoint, grounded on tarsy's
// pkg/api/server.go Echo v5 wiring (Server struct holding every dependency,
// setupRoutes registering a versioned API group, Start/StartWithListener/
// Shutdown lifecycle).
package api

import (
	"context"
	"crypto/rsa"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sondehub/hub/pkg/audit"
	"github.com/sondehub/hub/pkg/dispatcher"
	"github.com/sondehub/hub/pkg/enrollment"
	hubmetrics "github.com/sondehub/hub/pkg/metrics"
	"github.com/sondehub/hub/pkg/router"
	"github.com/sondehub/hub/pkg/runbook"
	"github.com/sondehub/hub/pkg/store"
	"github.com/sondehub/hub/pkg/trending"
)

// Server is the hub's HTTP API server: the caller-facing REST surface
// (probe execution, runbook runs, enrollment, agent listing, audit
// verification) plus the agent-facing WebSocket upgrade endpoint
// (spec.md §6, SPEC_FULL.md §6 — dashboard/SSO surfaces are explicit
// Non-goals and are not served here).
type Server struct {
	echo *echo.Echo

	store       *store.Store
	router      *router.Router
	runbooks    *runbook.Engine
	enrollment  *enrollment.Service
	ledger      *audit.Ledger
	dispatcher  *dispatcher.Dispatcher
	metrics     *hubmetrics.Metrics
	tracker     *trending.Tracker
	verifyAgent AgentVerifier

	httpServer *http.Server
}

// AgentVerifier authenticates an inbound agent WebSocket dial against its
// mTLS client certificate, returning the agent name carried in the
// certificate's common name and its public key (registered with the
// dispatcher so it can verify that agent's inbound message signatures).
// Wired by cmd/hubd from the request's TLS PeerCertificates (spec.md §4
// "registered only after the agent presents a valid client certificate").
type AgentVerifier func(r *http.Request) (agentName string, pubKey *rsa.PublicKey, err error)

// New constructs a Server and registers its routes.
func New(
	st *store.Store,
	rt *router.Router,
	runbooks *runbook.Engine,
	enrollmentSvc *enrollment.Service,
	ledger *audit.Ledger,
	disp *dispatcher.Dispatcher,
	m *hubmetrics.Metrics,
	tracker *trending.Tracker,
	verifyAgent AgentVerifier,
) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		echo:        e,
		store:       st,
		router:      rt,
		runbooks:    runbooks,
		enrollment:  enrollmentSvc,
		ledger:      ledger,
		dispatcher:  disp,
		metrics:     m,
		tracker:     tracker,
		verifyAgent: verifyAgent,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// Agent dial-in: mTLS handshake happens at the TLS listener; this
	// endpoint only performs the WebSocket upgrade and dispatcher handoff
	// (spec.md §2 "Agent dial -> mTLS handshake -> WebSocket upgrade ->
	// Dispatcher registers session").
	s.echo.GET("/agent/ws", s.agentWSHandler)

	// Consume is called by a not-yet-trusted agent presenting a one-shot
	// enrollment token, not an API key — it cannot sit behind apiKeyAuth.
	s.echo.POST("/api/v1/enrollment/consume", s.consumeEnrollmentTokenHandler)

	v1 := s.echo.Group("/api/v1", s.apiKeyAuth)
	v1.POST("/probes/execute", s.executeProbeHandler)
	v1.POST("/runbooks/:category/run", s.runRunbookHandler)
	v1.POST("/enrollment/tokens", s.createEnrollmentTokenHandler)
	v1.GET("/agents", s.listAgentsHandler)
	v1.GET("/audit/verify", s.verifyAuditHandler)
	v1.GET("/trending/probes/:probe", s.trendingByProbeHandler)
	v1.GET("/trending/agents/:agent", s.trendingByAgentHandler)
}

// Start starts the HTTP server on addr (blocking per net/http.Server's
// ListenAndServe semantics; call from a goroutine for non-blocking use).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Serve runs the HTTP server over a caller-supplied listener instead of
// dialing its own — used by cmd/hubd to hand in a TLS listener configured
// for mTLS client-certificate verification, which ListenAndServe cannot
// express (spec.md §2 "mTLS handshake -> WebSocket upgrade").
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
