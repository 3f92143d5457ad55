package store

import (
	"context"
	"time"
)

// Message represents a persisted chat line.
type Message struct {
	ID         int64
	EntryID    string // chat.Entry ID, unique per received line
	Channel    string
	User       string
	Body       string
	ReceivedAt time.Time
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message to storage and sets msg.ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a channel with pagination.
	// If beforeID is provided, returns messages older than that ID.
	// Limit determines max number of messages to return.
	// Results are in chronological order.
	ListMessages(ctx context.Context, channel string, limit int, beforeID *int64) ([]*Message, error)

	// ListChannels returns every channel with at least one stored message.
	ListChannels(ctx context.Context) ([]string, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
