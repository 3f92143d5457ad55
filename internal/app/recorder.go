package app

import (
	"context"

	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/store"
)

// HistoryRecorder persists received chat entries to a MessageStore.
type HistoryRecorder struct {
	store store.MessageStore
}

// NewHistoryRecorder returns a chat.Recorder backed by st.
func NewHistoryRecorder(st store.MessageStore) *HistoryRecorder {
	return &HistoryRecorder{store: st}
}

// Record implements chat.Recorder.
func (r *HistoryRecorder) Record(ctx context.Context, e chat.Entry) error {
	return r.store.SaveMessage(ctx, &store.Message{
		EntryID:    e.ID,
		Channel:    e.Channel,
		User:       e.User,
		Body:       e.Text,
		ReceivedAt: e.ReceivedAt,
	})
}
