package chat

import (
	"time"

	"github.com/gammazero/deque"
)

// DefaultHistorySize caps the in-memory log when no size is configured.
const DefaultHistorySize = 500

// Entry is one chat line received for a channel.
type Entry struct {
	ID         string
	Channel    string
	User       string
	Text       string
	ReceivedAt time.Time
}

// String formats the entry the way the UI shows it.
func (e Entry) String() string {
	return e.User + ": " + e.Text
}

// history is a bounded FIFO of entries. Not safe for concurrent use; the
// client guards it with its own mutex.
type history struct {
	limit   int
	entries deque.Deque[Entry]
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &history{limit: limit}
}

func (h *history) append(e Entry) {
	h.entries.PushBack(e)
	for h.entries.Len() > h.limit {
		h.entries.PopFront()
	}
}

func (h *history) reset() {
	h.entries.Clear()
}

func (h *history) snapshot() []Entry {
	out := make([]Entry, h.entries.Len())
	for i := range out {
		out[i] = h.entries.At(i)
	}
	return out
}

func (h *history) lines() []string {
	out := make([]string, h.entries.Len())
	for i := range out {
		out[i] = h.entries.At(i).String()
	}
	return out
}
