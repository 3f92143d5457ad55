package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/config"
	"github.com/vovakirdan/streamchat/internal/store"
	"github.com/vovakirdan/streamchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/streamchat/internal/transport/http"
)

// App wires together the chat client, history store and HTTP API.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	client          *chat.Client
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var (
		st       store.Store
		history  store.MessageStore
		recorder chat.Recorder
	)
	if cfg.DatabasePath != "" {
		sqliteStore, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
		st, history = sqliteStore, sqliteStore
		recorder = NewHistoryRecorder(sqliteStore)
	}

	client, err := NewChatClient(cfg, logger, recorder)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, err
	}

	if cfg.APISecret == "" && !isLoopback(cfg.Addr) {
		logger.Warn().Str("addr", cfg.Addr).Msg("api_secret is empty and the listener is not loopback; anyone reaching it can use the relay account")
	}

	server := transporthttp.NewServer(client, history, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		client:          client,
		store:           st,
		log:             logger,
	}, nil
}

// NewChatClient builds a relay client from cfg.Relay. recorder may be nil.
func NewChatClient(cfg *config.Config, logger *zerolog.Logger, recorder chat.Recorder) (*chat.Client, error) {
	r := cfg.Relay
	client, err := chat.New(chat.Options{
		URL:                  r.URL,
		Username:             r.Username,
		Token:                r.Token,
		Channel:              r.Channel,
		ReconnectDelay:       r.ReconnectDelay,
		MaxReconnectDelay:    r.MaxReconnectDelay,
		BackoffMultiplier:    r.BackoffMultiplier,
		MaxReconnectAttempts: r.MaxReconnectAttempts,
		HistorySize:          r.HistorySize,
		WriteTimeout:         r.WriteTimeout,
		SendRate:             r.SendRate,
		SendBurst:            r.SendBurst,
		Logger:               logger,
		Recorder:             recorder,
		OnState: func(ev chat.StateEvent) {
			logger.Debug().
				Stringer("from", ev.Old).
				Stringer("to", ev.New).
				Int("attempt", ev.Attempt).
				Dur("delay", ev.Delay).
				AnErr("cause", ev.Err).
				Msg("relay state changed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init chat client: %w", err)
	}
	return client, nil
}

// Run starts the chat client and HTTP server and blocks until context
// cancellation or a fatal error from either.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	clientErr := make(chan error, 1)

	go func() {
		clientErr <- a.client.Run(ctx)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var (
		runErr     error
		clientDone bool
	)
	select {
	case err := <-serverErr:
		cancel()
		<-clientErr
		a.cleanup()
		return err
	case err := <-clientErr:
		clientDone = true
		if err != nil {
			a.log.Error().Err(err).Msg("chat client stopped")
			runErr = fmt.Errorf("chat client: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()

	a.log.Info().Msg("shutting down http server")
	shutdownErr := a.server.Shutdown(shutdownCtx)

	cancel()
	if !clientDone {
		<-clientErr
	}
	a.cleanup()
	if shutdownErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	return errors.Join(runErr, <-serverErr)
}

// cleanup closes the chat client, database and other resources.
func (a *App) cleanup() {
	if err := a.client.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close chat client")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
