package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// SessionState is a position in the connection lifecycle
// (spec.md §4.D "Session state machine").
type SessionState string

const (
	StateDialing        SessionState = "dialing"
	StateAuthenticating SessionState = "authenticating"
	StateRegistered     SessionState = "registered"
	StateActive         SessionState = "active"
	StateClosing        SessionState = "closing"
	StateClosed         SessionState = "closed"
)

// session is a single agent's live connection. It holds the agent's name
// (not a reference to an Agent record — spec.md §9 "sessions hold an
// agent identifier, not a reference; the dispatcher owns sessions and is
// the single authority for 'is this agent online?'").
type session struct {
	mu sync.Mutex

	agentName string
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc

	state         SessionState
	missedBeats   int
	lastHeartbeat time.Time
}

func newSession(parentCtx context.Context, agentName string, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(parentCtx)
	return &session{
		agentName:     agentName,
		conn:          conn,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateDialing,
		lastHeartbeat: time.Now(),
	}
}

func (s *session) setState(st SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *session) getState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// recordHeartbeat resets the miss counter; called on every inbound heartbeat
// frame or any inbound traffic that implies liveness.
func (s *session) recordHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missedBeats = 0
	s.lastHeartbeat = time.Now()
}

// missHeartbeat increments the miss counter and reports the new count.
func (s *session) missHeartbeat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missedBeats++
	return s.missedBeats
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.setState(StateClosed)
	s.cancel()
	_ = s.conn.Close(code, reason)
}
