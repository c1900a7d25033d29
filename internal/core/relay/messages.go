package relay

import "encoding/json"

// Wire event names. These match what the desktop agent and the viewer
// frontend emit over the WebSocket channel.
const (
	EventRegisterAgent = "register-agent"
	EventWatchStream   = "watch-stream"
	EventStopWatching  = "stop-watching"
	EventStatusUpdate  = "status-update"
	EventLiveFrame     = "live-frame"
)

// Envelope is the single message shape exchanged on the relay channel.
// AgentID identifies the employee the message is about, never the
// connection carrying it.
type Envelope struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agentId"`
	Status    string          `json:"status,omitempty"`
	Frame     json.RawMessage `json:"frame,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Conn is one transport connection as the hub sees it. Send enqueues an
// envelope without blocking and reports whether it was accepted; a full
// or closed connection drops the envelope. The hub never learns why.
type Conn interface {
	ID() string
	Send(env Envelope) bool
}
