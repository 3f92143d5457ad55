package chat

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// DefaultRelayURL is the public Twitch chat relay.
const DefaultRelayURL = "wss://irc-ws.chat.twitch.tv:443"

// readLimit bounds a single inbound frame; the relay batches lines but never
// anywhere near this.
const readLimit = 1 << 20

// Conn is one open transport connection exchanging text frames.
type Conn interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, line string) error
	Close() error
}

// Dialer opens transport connections to the relay.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials the relay over WebSocket.
type WebSocketDialer struct {
	Options *websocket.DialOptions
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (string, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", nil
	}
	return string(data), nil
}

func (c *wsConn) Write(ctx context.Context, line string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
