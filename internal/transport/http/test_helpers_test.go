package http

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/config"
	"github.com/vovakirdan/streamchat/internal/irc"
	"github.com/vovakirdan/streamchat/internal/store"
	"github.com/vovakirdan/streamchat/internal/store/sqlite"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService is an in-memory ChatService.
type fakeService struct {
	mu        sync.Mutex
	channel   string
	connected bool
	entries   []chat.Entry
	sent      []string
	subs      []chan chat.Entry
}

func newFakeService(channel string) *fakeService {
	return &fakeService{channel: channel, connected: true}
}

func (f *fakeService) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.String())
	}
	return out
}

func (f *fakeService) Entries() []chat.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Entry(nil), f.entries...)
}

func (f *fakeService) Channel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel
}

func (f *fakeService) State() chat.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return chat.StateConnected
	}
	return chat.StateReconnecting
}

func (f *fakeService) Authenticated() bool {
	return f.State() == chat.StateConnected
}

func (f *fakeService) ChangeChannel(_ context.Context, name string) error {
	name = irc.NormalizeChannel(name)
	if name == "" {
		return chat.ErrInvalidChannel
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return chat.ErrNotConnected
	}
	f.channel = name
	f.entries = nil
	return nil
}

func (f *fakeService) Send(_ context.Context, text string) error {
	if text == "" {
		return chat.ErrInvalidMessage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return chat.ErrNotConnected
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeService) Subscribe(buffer int) (<-chan chat.Entry, func()) {
	ch := make(chan chat.Entry, buffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeService) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeService) publish(user, text string) chat.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := chat.Entry{
		ID:         user + "-" + text,
		Channel:    f.channel,
		User:       user,
		Text:       text,
		ReceivedAt: time.UnixMilli(1700000000000),
	}
	f.entries = append(f.entries, e)
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return e
}

func (f *fakeService) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func startTestServer(t *testing.T, svc ChatService, history store.MessageStore, secret string) *httptest.Server {
	t.Helper()

	disabledLogger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.APISecret = secret
	cfg.APIIssuer = "test"

	server := NewServer(svc, history, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts
}
