package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/streamchat/internal/proto"
)

// rawOutbound keeps Data undecoded until the event type is known.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "streamchat WebSocket address")
	token := flag.String("token", "", "API token (see `streamchat token`)")
	channel := flag.String("channel", "", "channel to switch to before waiting")
	text := flag.String("text", "", "message text to send (empty sends nothing)")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := *addr
	if *token != "" {
		url += "?access_token=" + *token
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if *channel != "" {
		if err := send(proto.InboundTypeJoin, proto.JoinData{Channel: *channel}); err != nil {
			return err
		}
	}
	if *text != "" {
		if err := send(proto.InboundTypeMsg, proto.MsgData{Text: *text}); err != nil {
			return err
		}
	}

	for {
		var outbound rawOutbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		switch outbound.Event {
		case proto.EventSnapshot:
			var snap proto.Snapshot
			if err := json.Unmarshal(outbound.Data, &snap); err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
			fmt.Printf("Snapshot: protocol=%d channel=%s state=%s buffered=%d\n",
				snap.Protocol, snap.Channel, snap.State, len(snap.Messages))
		case proto.EventMessage:
			var msg proto.ChatMessage
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(outbound.Data))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: channel=%s user=%s text=%q ts=%d\n", msg.Channel, msg.User, msg.Text, msg.TS)
			return nil
		default:
			// keep looping for a message
		}
	}
}
