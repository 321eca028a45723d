package dispatcher

import (
	"encoding/json"
	"sync"
	"time"
)

// pendingRequest is one in-flight hub→agent call awaiting a response
// (spec.md §4.D "Request correlation").
type pendingRequest struct {
	agentName string
	deadline  time.Time
	result    chan pendingResult
}

type pendingResult struct {
	body json.RawMessage
	err  error
}

// pendingTable maps monotone request id to its waiter. A single ticker
// sweeps for expired deadlines rather than one timer per call, mirroring
// tarsy's pkg/queue.runOrphanDetection single-ticker scan generalised from
// sessions to pending requests.
type pendingTable struct {
	mu     sync.Mutex
	byID   map[int64]*pendingRequest
	nextID int64
}

func newPendingTable() *pendingTable {
	return &pendingTable{byID: make(map[int64]*pendingRequest)}
}

func (t *pendingTable) register(agentName string, timeout time.Duration) (int64, *pendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	req := &pendingRequest{
		agentName: agentName,
		deadline:  time.Now().Add(timeout),
		result:    make(chan pendingResult, 1),
	}
	t.byID[id] = req
	return id, req
}

// resolve delivers a response to its waiter and removes the entry. Returns
// false if no such id was pending (late or spurious response).
func (t *pendingTable) resolve(id int64, body json.RawMessage) bool {
	t.mu.Lock()
	req, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	req.result <- pendingResult{body: body}
	return true
}

// failAgent fails every pending request for agentName with err (used on
// disconnect — spec.md §4.D "On disconnect, all pending entries for that
// agent fail with disconnected").
func (t *pendingTable) failAgent(agentName string, err error) {
	t.mu.Lock()
	var matched []*pendingRequest
	for id, req := range t.byID {
		if req.agentName == agentName {
			matched = append(matched, req)
			delete(t.byID, id)
		}
	}
	t.mu.Unlock()
	for _, req := range matched {
		req.result <- pendingResult{err: err}
	}
}

// sweepExpired fails any request past its deadline with a timeout error.
func (t *pendingTable) sweepExpired(now time.Time, timeoutErr error) {
	t.mu.Lock()
	var expired []*pendingRequest
	for id, req := range t.byID {
		if now.After(req.deadline) {
			expired = append(expired, req)
			delete(t.byID, id)
		}
	}
	t.mu.Unlock()
	for _, req := range expired {
		req.result <- pendingResult{err: timeoutErr}
	}
}

func (t *pendingTable) cancel(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}
