// Package dispatcher implements the hub side of the full-duplex signed
// WebSocket control channel to agents, generalising tarsy's
// pkg/events.ConnectionManager (one-directional event fan-out over
// coder/websocket) into bidirectional request/response RPC with
// correlation, session lifecycle, and heartbeats (spec.md §4.D).
package dispatcher

import "encoding/json"

// Kind identifies the role of a framed message.
type Kind string

const (
	KindRequest   Kind = "request"
	KindResponse  Kind = "response"
	KindEvent     Kind = "event"
	KindHeartbeat Kind = "heartbeat"
)

// Message is the wire frame exchanged over the WebSocket connection
// (spec.md §4.D "Message framing"). Sig is present on hub-originated
// messages and covers {id, kind, body} in canonical form.
type Message struct {
	ID   int64           `json:"id"`
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
	Sig  string          `json:"sig,omitempty"`
}

// canonicalBody renders body in the fixed, whitespace-free form signatures
// are computed over. json.RawMessage is assumed to already be compact
// (encoding/json.Marshal never emits insignificant whitespace).
func canonicalBody(body json.RawMessage) []byte {
	if len(body) == 0 {
		return []byte("null")
	}
	return []byte(body)
}
