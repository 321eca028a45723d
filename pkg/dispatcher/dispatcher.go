package dispatcher

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sondehub/hub/pkg/crypto"
	"github.com/sondehub/hub/pkg/herr"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatMisses   = 2
	sweepInterval     = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

// StatusObserver is notified when an agent's connectivity status changes.
type StatusObserver func(agentName string, status string)

// Signer produces a detached signature over canonical message bytes, backed
// by the hub CA key (spec.md §4.D "sig covering {id, kind, body}").
type Signer interface {
	Sign(data []byte) (string, error)
}

// Dispatcher is the single authority on agent connectivity. It owns every
// live session and the request/response correlation table, generalising
// tarsy's pkg/events.ConnectionManager from one-directional fan-out into
// full-duplex RPC (spec.md §4.D).
type Dispatcher struct {
	mu       sync.RWMutex
	sessions map[string]*session // agentName -> session

	pending *pendingTable
	signer  Signer
	pubKeys map[string]*rsa.PublicKey // agentName -> client cert pubkey, for inbound verification

	observers   []StatusObserver
	observersMu sync.Mutex

	stopCh chan struct{}
	once   sync.Once
}

// New constructs a Dispatcher. signer is used to sign every hub-originated
// message; it is typically the hub CA.
func New(signer Signer) *Dispatcher {
	d := &Dispatcher{
		sessions: make(map[string]*session),
		pending:  newPendingTable(),
		signer:   signer,
		pubKeys:  make(map[string]*rsa.PublicKey),
		stopCh:   make(chan struct{}),
	}
	go d.sweepLoop()
	return d
}

// Stop halts the deadline-sweep goroutine. Idempotent.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopCh) })
}

// RegisterAgentKey records the public key a connecting agent must be
// verified against (populated by pkg/api's agent WebSocket handler from the
// public key of the agent's mTLS client certificate, each time it connects).
func (d *Dispatcher) RegisterAgentKey(agentName string, pub *rsa.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pubKeys[agentName] = pub
}

// OnStatusChange registers an observer notified whenever an agent's
// connectivity status transitions.
func (d *Dispatcher) OnStatusChange(obs StatusObserver) {
	d.observersMu.Lock()
	defer d.observersMu.Unlock()
	d.observers = append(d.observers, obs)
}

func (d *Dispatcher) notify(agentName, status string) {
	d.observersMu.Lock()
	observers := append([]StatusObserver(nil), d.observers...)
	d.observersMu.Unlock()
	for _, obs := range observers {
		obs(agentName, status)
	}
}

// OnConnect registers a newly authenticated agent session. The caller is
// expected to have already validated the client certificate before calling
// this (session enters StateRegistered only after that check, per
// spec.md §4.D).
func (d *Dispatcher) OnConnect(parentCtx context.Context, agentName string, conn *websocket.Conn) *session {
	sess := newSession(parentCtx, agentName, conn)
	sess.setState(StateRegistered)

	d.mu.Lock()
	if old, exists := d.sessions[agentName]; exists {
		old.close(websocket.StatusNormalClosure, "superseded by new session")
	}
	d.sessions[agentName] = sess
	d.mu.Unlock()

	sess.setState(StateActive)
	d.notify(agentName, "online")
	return sess
}

// OnDisconnect tears down a session: fails its pending calls with
// disconnected and marks the agent offline (spec.md §4.D failure semantics).
func (d *Dispatcher) OnDisconnect(agentName string) {
	d.mu.Lock()
	sess, exists := d.sessions[agentName]
	if exists {
		delete(d.sessions, agentName)
	}
	d.mu.Unlock()

	if !exists {
		return
	}
	sess.close(websocket.StatusNormalClosure, "")
	d.pending.failAgent(agentName, herr.New(herr.KindUnreachable, "agent disconnected"))
	d.notify(agentName, "offline")
}

// IsOnline reports whether the named agent currently has an active session.
func (d *Dispatcher) IsOnline(agentName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sess, ok := d.sessions[agentName]
	return ok && sess.getState() == StateActive
}

// ListOnlineAgents returns the names of every agent with an active session.
func (d *Dispatcher) ListOnlineAgents() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sessions))
	for name, sess := range d.sessions {
		if sess.getState() == StateActive {
			names = append(names, name)
		}
	}
	return names
}

// Call sends a signed request to agentName and blocks for a response or
// timeout. Multiple concurrent calls to the same agent are permitted; the
// agent need not respond in request order since correlation is by id
// (spec.md §4.D "Ordering and concurrency").
func (d *Dispatcher) Call(ctx context.Context, agentName, method string, params any, timeout time.Duration) ([]byte, error) {
	d.mu.RLock()
	sess, ok := d.sessions[agentName]
	d.mu.RUnlock()
	if !ok || sess.getState() != StateActive {
		return nil, herr.New(herr.KindUnreachable, "agent offline")
	}

	body, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		return nil, fmt.Errorf("marshal call params: %w", err)
	}

	id, req := d.pending.register(agentName, timeout)
	msg, err := d.signMessage(id, KindRequest, body)
	if err != nil {
		d.pending.cancel(id)
		return nil, fmt.Errorf("sign request: %w", err)
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		d.pending.cancel(id)
		return nil, fmt.Errorf("marshal frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := sess.conn.Write(writeCtx, websocket.MessageText, frame); err != nil {
		d.pending.cancel(id)
		return nil, herr.Wrap(herr.KindUnreachable, "send request to agent", err)
	}

	select {
	case res := <-req.result:
		if res.err != nil {
			return nil, res.err
		}
		return res.body, nil
	case <-ctx.Done():
		d.pending.cancel(id)
		return nil, ctx.Err()
	}
}

// Broadcast sends an unsolicited event (id=0) to every online agent.
func (d *Dispatcher) Broadcast(ctx context.Context, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Error("broadcast marshal failed", "error", err)
		return
	}
	msg, err := d.signMessage(0, KindEvent, payload)
	if err != nil {
		slog.Error("broadcast sign failed", "error", err)
		return
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast frame marshal failed", "error", err)
		return
	}

	d.mu.RLock()
	sessions := make([]*session, 0, len(d.sessions))
	for _, sess := range d.sessions {
		if sess.getState() == StateActive {
			sessions = append(sessions, sess)
		}
	}
	d.mu.RUnlock()

	for _, sess := range sessions {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := sess.conn.Write(writeCtx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			slog.Warn("broadcast send failed", "agent", sess.agentName, "error", err)
		}
	}
}

// HandleInbound processes one frame received from an agent's read loop.
// Messages failing signature verification (when a public key is on file)
// are dropped and logged; no state mutation is performed
// (spec.md §4.D failure semantics, §6 "Signature verification failure on
// an inbound message -> the message is dropped ... no state mutation").
func (d *Dispatcher) HandleInbound(agentName string, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("dropping malformed inbound frame", "agent", agentName, "error", err)
		return
	}

	d.mu.RLock()
	sess := d.sessions[agentName]
	pub := d.pubKeys[agentName]
	d.mu.RUnlock()
	if sess == nil {
		return
	}

	if pub != nil {
		input := canonicalFrameInput(msg.ID, msg.Kind, msg.Body)
		if err := crypto.Verify(pub, input, msg.Sig); err != nil {
			slog.Warn("dropping inbound frame with invalid signature", "agent", agentName, "error", err)
			return
		}
	}

	switch msg.Kind {
	case KindHeartbeat:
		sess.recordHeartbeat()
	case KindResponse:
		sess.recordHeartbeat()
		d.pending.resolve(msg.ID, msg.Body)
	case KindEvent:
		sess.recordHeartbeat()
		// Unsolicited agent events (id=0) are informational; routed to
		// pkg/router by the caller wiring HandleInbound, not here.
	default:
		slog.Warn("dropping inbound frame of unexpected kind", "agent", agentName, "kind", msg.Kind)
	}
}

func (d *Dispatcher) signMessage(id int64, kind Kind, body json.RawMessage) (*Message, error) {
	sig, err := d.signer.Sign(canonicalFrameInput(id, kind, body))
	if err != nil {
		return nil, err
	}
	return &Message{ID: id, Kind: kind, Body: body, Sig: sig}, nil
}

func canonicalFrameInput(id int64, kind Kind, body json.RawMessage) []byte {
	return crypto.CanonicalSignatureInput(string(kind), id, canonicalBody(body))
}

// sweepLoop periodically fails pending calls past their deadline, mirroring
// tarsy's pkg/queue.runOrphanDetection single-ticker scan.
func (d *Dispatcher) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.pending.sweepExpired(time.Now(), herr.New(herr.KindTimeout, "request timed out"))
		case <-heartbeatTicker.C:
			d.checkHeartbeats()
		}
	}
}

// checkHeartbeats transitions sessions that have missed two consecutive
// heartbeats to offline (spec.md §4.D).
func (d *Dispatcher) checkHeartbeats() {
	d.mu.RLock()
	sessions := make([]*session, 0, len(d.sessions))
	for _, sess := range d.sessions {
		sessions = append(sessions, sess)
	}
	d.mu.RUnlock()

	for _, sess := range sessions {
		misses := sess.missHeartbeat()
		if misses == 1 {
			d.notify(sess.agentName, "degraded")
		} else if misses >= heartbeatMisses {
			d.OnDisconnect(sess.agentName)
		}
	}
}
