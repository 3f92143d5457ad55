package proto

import "encoding/json"

// Inbound is the envelope for messages coming from a UI client over /ws.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin = "join"
	InboundTypeMsg  = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSnapshot = "snapshot"
	EventMessage  = "message"
)

// JoinData requests a channel change.
type JoinData struct {
	Channel string `json:"channel"`
}

// MsgData is a chat message to send to the current channel.
type MsgData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the UI client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ChatMessage is one received chat line. Seq is set on persisted history only
// and is the cursor for the next page (`before`).
type ChatMessage struct {
	ID      string `json:"id"`
	Seq     int64  `json:"seq,omitempty"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      int64  `json:"ts"`
}

// Snapshot is sent once when a UI client connects, and after a channel change.
type Snapshot struct {
	Protocol int           `json:"protocol"`
	Channel  string        `json:"channel"`
	State    string        `json:"state"`
	Messages []ChatMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
