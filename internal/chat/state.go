package chat

import "time"

// State is the relay connection state.
type State int

const (
	// StateDisconnected means Run has not started yet.
	StateDisconnected State = iota
	// StateConnecting means a dial and the auth handshake are in progress.
	StateConnecting
	// StateConnected means auth and JOIN were written and the session is usable.
	StateConnected
	// StateReconnecting means the session ended and a retry timer is armed.
	StateReconnecting
	// StateClosed means the owner stopped the client.
	StateClosed
	// StateFailed means the client stopped on its own (bad credentials or retries exhausted).
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateEvent describes a state transition.
type StateEvent struct {
	Old State
	New State
	// Attempt and Delay are set when New is StateReconnecting.
	Attempt int
	Delay   time.Duration
	Err     error
}
