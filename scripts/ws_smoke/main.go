package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/proto"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoke-user", "user id to announce")
	token := flag.String("token", "", "announce token (when the server requires one)")
	peer := flag.String("peer", "smoke-peer", "receiver user id")
	text := flag.String("text", "hello from smoke test", "message body to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
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

	conversation := core.ConversationID(*user, *peer)

	if err := send(proto.InboundTypeAnnounce, proto.AnnounceData{User: *user, Token: *token}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoinTopic, proto.TopicData{Topic: conversation}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeSend, proto.SendData{
		Sender:   *user,
		Receiver: *peer,
		Body:     *text,
	}); err != nil {
		return err
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Error != nil {
			return fmt.Errorf("server error: %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventMessageReceived:
			var evt proto.EventChatMessage
			if err := json.Unmarshal(raw, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: conversation=%s sender=%s body=%q ts=%d\n", evt.Conversation, evt.Sender, evt.Body, evt.TS)
			return nil
		case proto.EventPresenceChanged:
			var evt proto.EventPresence
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Presence: user=%s online=%v\n", evt.User, evt.Online)
			}
		case proto.EventOnlineUsers:
			var evt proto.EventOnlineSnapshot
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Online: %v\n", evt.Users)
			}
		default:
			// keep looping until the sent message comes back
		}
	}
}
