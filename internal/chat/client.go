// Package chat keeps a single connection to a Twitch-style chat relay, buffers
// the lines of the joined channel and lets callers switch channel or send.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/streamchat/internal/irc"
	"github.com/vovakirdan/streamchat/internal/metrics"
)

// Client is a reconnecting chat relay client. Create it with New and drive it
// with Run or Start.
type Client struct {
	opts    Options
	log     *zerolog.Logger
	limiter *rate.Limiter

	mu      sync.RWMutex
	state   State
	conn    Conn
	channel string
	authed  bool
	history *history
	subs    map[uint64]chan Entry
	nextSub uint64
	cancel  context.CancelFunc
	closed  bool

	// writeMu keeps frames from concurrent writers in call order.
	writeMu sync.Mutex
}

// New validates opts and builds a client. It does not connect.
func New(opts Options) (*Client, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	logger := opts.Logger.With().Str("component", "chat").Logger()

	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}

	return &Client{
		opts:    opts,
		log:     &logger,
		limiter: rate.NewLimiter(limit, opts.SendBurst),
		state:   StateDisconnected,
		channel: opts.Channel,
		history: newHistory(opts.HistorySize),
		subs:    make(map[uint64]chan Entry),
	}, nil
}

// Start runs the connection loop in the background.
func (c *Client) Start(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil {
			c.log.Error().Err(err).Msg("chat client stopped")
		}
	}()
}

// Run connects to the relay and keeps reconnecting until ctx is cancelled,
// Close is called, the relay rejects the credentials (ErrAuthFailed) or the
// attempt budget is exhausted (ErrGaveUp). Cancellation returns nil.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("chat: client already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	attempt := 0
	for {
		established, err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StateClosed, StateEvent{})
			return nil
		}
		if errors.Is(err, ErrAuthFailed) {
			c.log.Error().Str("user", c.opts.Username).Msg("relay rejected credentials, not retrying")
			c.setState(StateFailed, StateEvent{Err: err})
			return err
		}

		if established {
			attempt = 0
		}
		attempt++
		if limit := c.opts.MaxReconnectAttempts; limit > 0 && attempt > limit {
			c.log.Error().Err(err).Int("attempts", limit).Msg("giving up on relay")
			c.setState(StateFailed, StateEvent{Attempt: attempt, Err: err})
			return fmt.Errorf("%w: %w", ErrGaveUp, err)
		}

		delay := c.opts.backoff(attempt)
		timer := c.opts.Clock.Timer(delay)
		metrics.Reconnects.Inc()
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("relay connection lost, reconnecting")
		c.setState(StateReconnecting, StateEvent{Attempt: attempt, Delay: delay, Err: err})

		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateClosed, StateEvent{})
			return nil
		case <-timer.C:
		}
	}
}

// Close stops the connection loop and the live socket. Subscriptions are
// closed. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	} else {
		c.setState(StateClosed, StateEvent{})
	}
	return nil
}

// session runs one physical connection. The bool reports whether the
// handshake completed, which resets the backoff.
func (c *Client) session(ctx context.Context) (bool, error) {
	c.setState(StateConnecting, StateEvent{})

	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	conn, err := c.opts.Dialer.Dial(dialCtx, c.opts.URL)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	// Auth must precede everything else on the wire; the connection is not
	// published to callers until it is done.
	handshake := []string{irc.Pass(c.opts.Token), irc.Nick(c.opts.Username), irc.Join(channel)}
	for _, line := range handshake {
		if err := c.write(ctx, conn, line); err != nil {
			return false, fmt.Errorf("handshake: %w", err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.authed = false
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.authed = false
		c.mu.Unlock()
	}()

	c.log.Info().Str("url", c.opts.URL).Str("user", c.opts.Username).Str("channel", channel).Msg("connected to relay")
	c.setState(StateConnected, StateEvent{})

	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			return true, fmt.Errorf("read relay: %w", err)
		}
		for _, line := range irc.SplitLines(frame) {
			if err := c.handleLine(ctx, conn, line); err != nil {
				return true, err
			}
		}
	}
}

func (c *Client) handleLine(ctx context.Context, conn Conn, line string) error {
	if p, ok := irc.ParsePrivmsg(line); ok {
		c.accept(ctx, p)
		return nil
	}

	msg := irc.Parse(line)
	switch msg.Command {
	case irc.CommandPing:
		arg := msg.Trailing
		if arg == "" && len(msg.Params) > 0 {
			arg = msg.Params[0]
		}
		if err := c.write(ctx, conn, irc.Pong(arg)); err != nil {
			return fmt.Errorf("pong: %w", err)
		}
	case irc.CommandWelcome:
		c.mu.Lock()
		c.authed = true
		c.mu.Unlock()
		c.log.Debug().Msg("relay accepted credentials")
	case irc.CommandNotice:
		if irc.IsAuthFailure(msg) {
			return ErrAuthFailed
		}
		c.log.Debug().Str("notice", msg.Trailing).Msg("relay notice")
	case irc.CommandReconnect:
		return errReconnectRequested
	}
	return nil
}

func (c *Client) accept(ctx context.Context, p irc.PrivmsgLine) {
	entry := Entry{
		ID:         uuid.NewString(),
		Channel:    p.Channel,
		User:       p.Sender,
		Text:       p.Text,
		ReceivedAt: c.opts.Clock.Now(),
	}

	c.mu.Lock()
	if entry.Channel != c.channel {
		c.mu.Unlock()
		c.log.Debug().Str("channel", entry.Channel).Msg("dropping message for previous channel")
		return
	}
	c.history.append(entry)
	for _, ch := range c.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	c.mu.Unlock()

	metrics.MessagesReceived.WithLabelValues(entry.Channel).Inc()

	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.Record(ctx, entry); err != nil {
			c.log.Warn().Err(err).Str("channel", entry.Channel).Msg("failed to record message")
		}
	}
}

func (c *Client) write(ctx context.Context, conn Conn, line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(ctx, conn, line)
}

// writeLocked is write for callers already holding writeMu.
func (c *Client) writeLocked(ctx context.Context, conn Conn, line string) error {
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, line)
}

// ChangeChannel leaves the current channel and joins name on the existing
// session, clearing the log. It fails with ErrNotConnected, changing nothing,
// when no connection is open, and leaves channel and log untouched when either
// write fails.
func (c *Client) ChangeChannel(ctx context.Context, name string) error {
	name = irc.NormalizeChannel(name)
	if !validChannel(name) {
		return ErrInvalidChannel
	}

	// writeMu serializes concurrent switches and keeps PART/JOIN adjacent on
	// the wire; mu is only taken to read and commit state.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn, old, state := c.conn, c.channel, c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		c.log.Warn().Str("channel", name).Msg("relay connection is not open, cannot change channel")
		return ErrNotConnected
	}

	if err := c.writeLocked(ctx, conn, irc.Part(old)); err != nil {
		return fmt.Errorf("part #%s: %w", old, err)
	}
	if err := c.writeLocked(ctx, conn, irc.Join(name)); err != nil {
		return fmt.Errorf("join #%s: %w", name, err)
	}

	c.mu.Lock()
	c.channel = name
	c.history.reset()
	c.mu.Unlock()

	c.log.Info().Str("from", old).Str("to", name).Msg("changed channel")
	return nil
}

// Send writes a chat message to the current channel. The relay echoes it
// back only if configured to; nothing is added to the log locally.
func (c *Client) Send(ctx context.Context, text string) error {
	if text == "" || strings.ContainsAny(text, "\r\n") {
		return ErrInvalidMessage
	}

	c.mu.RLock()
	conn, channel, state := c.conn, c.channel, c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		c.log.Warn().Msg("relay connection is not open, message not sent")
		return ErrNotConnected
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}
	if err := c.write(ctx, conn, irc.Privmsg(channel, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(channel).Inc()
	c.log.Debug().Str("channel", channel).Msg("sent message")
	return nil
}

// Messages returns the buffered log formatted as "user: text", oldest first.
// The slice is a copy.
func (c *Client) Messages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.lines()
}

// Entries returns a copy of the buffered log.
func (c *Client) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.snapshot()
}

// Channel returns the currently joined channel.
func (c *Client) Channel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Authenticated reports whether the relay has welcomed the current session.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed
}

// Subscribe returns a channel receiving entries as they are accepted, and a
// function to cancel the subscription. Slow subscribers miss entries rather
// than block the reader.
func (c *Client) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Entry, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

func (c *Client) setState(s State, ev StateEvent) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()

	ev.Old, ev.New = old, s
	metrics.ConnectionState.Set(float64(s))
	if old != s {
		c.log.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state changed")
	}
	if c.opts.OnState != nil {
		c.opts.OnState(ev)
	}
}
