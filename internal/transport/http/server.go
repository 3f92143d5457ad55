package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/auth"
	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/config"
	"github.com/vovakirdan/streamchat/internal/store"
)

var errBadRequest = errors.New("bad request")

// ChatService is the chat client surface the API exposes. *chat.Client implements it.
type ChatService interface {
	Messages() []string
	Entries() []chat.Entry
	Channel() string
	State() chat.State
	Authenticated() bool
	ChangeChannel(ctx context.Context, name string) error
	Send(ctx context.Context, text string) error
	Subscribe(buffer int) (<-chan chat.Entry, func())
}

// NewServer builds the HTTP server. history may be nil when persistence is disabled.
func NewServer(svc ChatService, history store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	jwtCfg := &auth.JWTConfig{
		Secret: []byte(cfg.APISecret),
		Issuer: cfg.APIIssuer,
	}

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := NewChatHandlers(svc, history, logger)
	api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
	api.GET("/channel", handlers.GetChannel)
	api.PUT("/channel", handlers.ChangeChannel)
	api.GET("/messages", handlers.GetMessages)
	api.POST("/messages", handlers.SendMessage)
	api.GET("/history", handlers.GetHistory)
	api.GET("/history/channels", handlers.ListHistoryChannels)

	// /ws stays off the gin engine: gin refuses to hijack a connection once
	// the upgrade response has been written.
	ws := NewWSHandler(svc, logger)
	if jwtCfg.Enabled() {
		ws.SkipOriginCheck = true
	} else {
		ws.OriginPatterns = cfg.AllowedOrigins
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", RequireToken(jwtCfg, logger, ws))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
