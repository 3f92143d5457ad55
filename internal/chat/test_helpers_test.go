package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

type fakeConn struct {
	inbound   chan string
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []string
	// onWrite, when set, runs before a line is recorded; an error fails the write.
	onWrite func(line string) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (string, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.closed:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, line string) error {
	select {
	case <-c.closed:
		return errors.New("write on closed conn")
	default:
	}

	c.mu.Lock()
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		if err := hook(line); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, line)
	return nil
}

func (c *fakeConn) setOnWrite(hook func(line string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = hook
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) deliver(frame string) {
	c.inbound <- frame
}

type fakeDialer struct {
	conns chan *fakeConn

	mu    sync.Mutex
	dials int
	err   error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) failWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type harness struct {
	client *Client
	dialer *fakeDialer
	clock  *clock.Mock
	states chan StateEvent
	runErr chan error
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		dialer: newFakeDialer(),
		clock:  clock.NewMock(),
		states: make(chan StateEvent, 256),
		runErr: make(chan error, 1),
	}

	opts := Options{
		Username: "Larry",
		Token:    testToken,
		Channel:  "mst3k",
		Dialer:   h.dialer,
		Clock:    h.clock,
		OnState: func(ev StateEvent) {
			select {
			case h.states <- ev:
			default:
			}
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	client, err := New(opts)
	require.NoError(t, err)
	h.client = client

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.runErr <- client.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
	})

	return h
}

// waitState consumes state events until one with the given state arrives.
func (h *harness) waitState(t *testing.T, s State) StateEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.states:
			if ev.New == s {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected state %v not reached (current %v)", s, h.client.State())
			return StateEvent{}
		}
	}
}

func (h *harness) nextConn(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case c := <-h.dialer.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection dialed")
		return nil
	}
}

// connect waits for the next session to complete its handshake.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()

	conn := h.nextConn(t)
	h.waitState(t, StateConnected)
	return conn
}

func (h *harness) waitRunResult(t *testing.T) error {
	t.Helper()

	select {
	case err := <-h.runErr:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
		return nil
	}
}
