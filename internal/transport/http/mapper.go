package http

import (
	"errors"
	"net/http"

	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/proto"
	"github.com/vovakirdan/streamchat/internal/store"
)

func entryToMessage(e chat.Entry) proto.ChatMessage {
	return proto.ChatMessage{
		ID:      e.ID,
		Channel: e.Channel,
		User:    e.User,
		Text:    e.Text,
		TS:      e.ReceivedAt.UnixMilli(),
	}
}

func storedToMessage(m *store.Message) proto.ChatMessage {
	return proto.ChatMessage{
		ID:      m.EntryID,
		Seq:     m.ID,
		Channel: m.Channel,
		User:    m.User,
		Text:    m.Body,
		TS:      m.ReceivedAt.UnixMilli(),
	}
}

func snapshotOf(svc ChatService) proto.Snapshot {
	entries := svc.Entries()
	msgs := make([]proto.ChatMessage, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, entryToMessage(e))
	}
	return proto.Snapshot{
		Protocol: proto.ProtocolVersion,
		Channel:  svc.Channel(),
		State:    svc.State().String(),
		Messages: msgs,
	}
}

// statusFor maps chat errors to HTTP statuses.
func statusFor(err error) int {
	switch chat.Code(err) {
	case chat.ErrCodeNotConnected:
		return http.StatusConflict
	case chat.ErrCodeInvalidChannel, chat.ErrCodeInvalidMessage:
		return http.StatusBadRequest
	case chat.ErrCodeClosed:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func protoError(err error) *proto.Error {
	code := chat.Code(err)
	switch {
	case code != "":
	case errors.Is(err, errBadRequest):
		code = "bad_request"
	default:
		code = "internal_error"
	}
	return &proto.Error{Code: code, Msg: err.Error()}
}
