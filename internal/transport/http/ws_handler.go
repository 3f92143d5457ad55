package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/proto"
)

const subscriberBuffer = 64

// WSHandler upgrades HTTP connections and pushes chat entries to UI clients.
type WSHandler struct {
	svc ChatService
	log *zerolog.Logger

	// OriginPatterns lists extra origins allowed besides the request host.
	OriginPatterns []string
	// SkipOriginCheck accepts any origin. Only set it when requests are
	// already authenticated by token.
	SkipOriginCheck bool
}

// NewWSHandler builds a new WebSocket handler that accepts same-origin
// connections only.
func NewWSHandler(svc ChatService, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{svc: svc, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.SkipOriginCheck,
		OriginPatterns:     h.OriginPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	sessionID := uuid.NewString()
	logger := h.log.With().Str("session_id", sessionID).Logger()

	// Subscribe before the snapshot so no entry falls between the two.
	entries, unsubscribe := h.svc.Subscribe(subscriberBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := h.writeSnapshot(ctx, conn); err != nil {
		logger.Warn().Err(err).Msg("write ws snapshot")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, entries, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			logger.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		if err := h.dispatch(ctx, conn, inbound); err != nil {
			logger.Debug().Err(err).Str("type", inbound.Type).Msg("ws inbound rejected")
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoError(err),
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return fmt.Errorf("%w: decode join: %w", errBadRequest, err)
		}
		if err := h.svc.ChangeChannel(ctx, data.Channel); err != nil {
			return err
		}
		return h.writeSnapshot(ctx, conn)
	case proto.InboundTypeMsg:
		var data proto.MsgData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return fmt.Errorf("%w: decode msg: %w", errBadRequest, err)
		}
		return h.svc.Send(ctx, data.Text)
	default:
		return fmt.Errorf("%w: unknown type %q", errBadRequest, inbound.Type)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, entries <-chan chat.Entry, logger *zerolog.Logger) error {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeEvent,
				Event: proto.EventMessage,
				Data:  entryToMessage(entry),
			}); err != nil {
				logger.Debug().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeSnapshot(ctx context.Context, conn *websocket.Conn) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventSnapshot,
		Data:  snapshotOf(h.svc),
	})
}
