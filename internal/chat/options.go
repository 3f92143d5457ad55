package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/irc"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultDialTimeout    = 15 * time.Second
)

// Recorder receives every entry accepted into the log, e.g. for persistence.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	URL      string
	Username string
	Token    string
	Channel  string

	// ReconnectDelay is the wait before the first reconnect attempt. Each
	// further consecutive failure multiplies it by BackoffMultiplier, capped at
	// MaxReconnectDelay. A cap below ReconnectDelay keeps the delay constant.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	BackoffMultiplier float64
	// MaxReconnectAttempts stops the client after that many consecutive failed
	// attempts. Zero retries forever.
	MaxReconnectAttempts int

	HistorySize  int
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// SendRate limits outbound chat messages per second. Zero disables the limit.
	SendRate  float64
	SendBurst int

	Dialer   Dialer
	Clock    clock.Clock
	Logger   *zerolog.Logger
	Recorder Recorder
	// OnState is called synchronously on every state transition.
	OnState func(StateEvent)
}

func (o *Options) normalize() error {
	o.Username = strings.TrimSpace(o.Username)
	if o.Username == "" {
		return errors.New("chat: username is required")
	}
	o.Channel = irc.NormalizeChannel(o.Channel)
	if !validChannel(o.Channel) {
		return ErrInvalidChannel
	}
	if o.URL == "" {
		o.URL = DefaultRelayURL
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectDelay < o.ReconnectDelay {
		o.MaxReconnectDelay = o.ReconnectDelay
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = 1
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 1
	}
	if o.Dialer == nil {
		o.Dialer = WebSocketDialer{}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return nil
}

// backoff returns the delay before the given 1-based consecutive attempt.
func (o *Options) backoff(attempt int) time.Duration {
	delay := float64(o.ReconnectDelay)
	for i := 1; i < attempt; i++ {
		delay *= o.BackoffMultiplier
		if delay >= float64(o.MaxReconnectDelay) {
			return o.MaxReconnectDelay
		}
	}
	return time.Duration(delay)
}

func validChannel(name string) bool {
	return name != "" && !strings.ContainsAny(name, " ,\t\r\n\x00\x07")
}
