package chat

import "errors"

// Error codes surfaced to API clients.
const (
	ErrCodeNotConnected   = "not_connected"
	ErrCodeInvalidChannel = "invalid_channel"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeAuthFailed     = "auth_failed"
	ErrCodeGaveUp         = "gave_up"
	ErrCodeClosed         = "closed"
)

var (
	ErrNotConnected   = &Error{Code: ErrCodeNotConnected, Message: "relay connection is not open"}
	ErrInvalidChannel = &Error{Code: ErrCodeInvalidChannel, Message: "invalid channel name"}
	ErrInvalidMessage = &Error{Code: ErrCodeInvalidMessage, Message: "message must be a single non-empty line"}
	ErrAuthFailed     = &Error{Code: ErrCodeAuthFailed, Message: "relay rejected credentials"}
	ErrGaveUp         = &Error{Code: ErrCodeGaveUp, Message: "reconnect attempts exhausted"}
	ErrClosed         = &Error{Code: ErrCodeClosed, Message: "client closed"}

	errReconnectRequested = errors.New("relay requested reconnect")
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Code extracts the error code from err, or "" when err is not a chat error.
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
