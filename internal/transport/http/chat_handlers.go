package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/irc"
	"github.com/vovakirdan/streamchat/internal/proto"
	"github.com/vovakirdan/streamchat/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ChatHandlers provides HTTP handlers for the chat read/write model.
type ChatHandlers struct {
	svc     ChatService
	history store.MessageStore
	log     *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc ChatService, history store.MessageStore, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		svc:     svc,
		history: history,
		log:     logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ChannelResponse describes the joined channel and connection state.
type ChannelResponse struct {
	Channel       string `json:"channel"`
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
}

// ChangeChannelRequest represents the change channel request body.
type ChangeChannelRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// MessagesResponse is the buffered log of the current channel.
type MessagesResponse struct {
	Channel  string   `json:"channel"`
	Messages []string `json:"messages"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// HistoryResponse is a page of persisted messages.
type HistoryResponse struct {
	Channel  string              `json:"channel"`
	Messages []proto.ChatMessage `json:"messages"`
}

// GetChannel returns the current channel.
// GET /api/channel
func (h *ChatHandlers) GetChannel(c *gin.Context) {
	c.JSON(http.StatusOK, h.channelResponse())
}

// ChangeChannel leaves the current channel and joins the requested one.
// PUT /api/channel
func (h *ChatHandlers) ChangeChannel(c *gin.Context) {
	var req ChangeChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid change channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.svc.ChangeChannel(c.Request.Context(), req.Channel); err != nil {
		h.writeError(c, err, "failed to change channel")
		return
	}

	c.JSON(http.StatusOK, h.channelResponse())
}

// GetMessages returns the buffered messages of the current channel.
// GET /api/messages
func (h *ChatHandlers) GetMessages(c *gin.Context) {
	c.JSON(http.StatusOK, MessagesResponse{
		Channel:  h.svc.Channel(),
		Messages: h.svc.Messages(),
	})
}

// SendMessage sends a chat message to the current channel.
// POST /api/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.svc.Send(c.Request.Context(), req.Text); err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}

	c.Status(http.StatusAccepted)
}

// GetHistory returns persisted messages for a channel, newest page first.
// GET /api/history?channel=&limit=&before=
func (h *ChatHandlers) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history is disabled"})
		return
	}

	channel := irc.NormalizeChannel(c.DefaultQuery("channel", h.svc.Channel()))

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		before = &id
	}

	stored, err := h.history.ListMessages(c.Request.Context(), channel, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("failed to list history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	msgs := make([]proto.ChatMessage, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, storedToMessage(m))
	}
	c.JSON(http.StatusOK, HistoryResponse{Channel: channel, Messages: msgs})
}

// ListHistoryChannels returns channels with persisted messages.
// GET /api/history/channels
func (h *ChatHandlers) ListHistoryChannels(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history is disabled"})
		return
	}

	channels, err := h.history.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list history channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if channels == nil {
		channels = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h *ChatHandlers) channelResponse() ChannelResponse {
	return ChannelResponse{
		Channel:       h.svc.Channel(),
		State:         h.svc.State().String(),
		Authenticated: h.svc.Authenticated(),
	}
}

func (h *ChatHandlers) writeError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	} else {
		h.log.Debug().Err(err).Msg(msg)
	}

	pe := protoError(err)
	c.JSON(status, ErrorResponse{Error: pe.Msg, Code: pe.Code})
}
