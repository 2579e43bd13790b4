package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/campuslink/realtime/internal/proto"
)

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) (int, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

func TestCreateUserEndpoint(t *testing.T) {
	ts := startTestServer(t)

	status, _ := postJSON(t, ts, "/api/users", map[string]any{"id": "u9", "name": "Newcomer"})
	if status != 201 {
		t.Fatalf("expected 201, got %d", status)
	}

	// Missing required fields are rejected.
	status, _ = postJSON(t, ts, "/api/users", map[string]any{"name": "No ID"})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestOnlineUsersEndpoint(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendInbound(t, ctx, conn, proto.InboundTypeAnnounce, proto.AnnounceData{User: "u1"})
	readUntilEvent(t, ctx, conn, proto.EventOnlineUsers)

	resp, err := ts.Client().Get(ts.URL + "/api/online")
	if err != nil {
		t.Fatalf("GET /api/online: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count int      `json:"count"`
		Users []string `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Users) != 1 || body.Users[0] != "u1" {
		t.Fatalf("unexpected snapshot: %+v", body)
	}
}

func TestPublishEventEndpoint(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Anonymous connection subscribed to the shared events topic.
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendInbound(t, ctx, conn, proto.InboundTypeJoinTopic, proto.TopicData{Topic: "events"})
	time.Sleep(50 * time.Millisecond)

	status, _ := postJSON(t, ts, "/api/events", map[string]any{
		"kind":    "new_post",
		"payload": map[string]any{"post_id": "p1"},
	})
	if status != 202 {
		t.Fatalf("expected 202, got %d", status)
	}

	frame := readUntilEvent(t, ctx, conn, proto.EventUpdate)
	var update proto.EventLiveUpdate
	if err := json.Unmarshal(frame.Data, &update); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	if update.Kind != "new_post" || !bytes.Contains(update.Payload, []byte("p1")) {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestListMessagesEndpoint(t *testing.T) {
	ts := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for i := 0; i < 3; i++ {
		sendInbound(t, ctx, conn, proto.InboundTypeSend, proto.SendData{
			Sender:   "u1",
			Receiver: "u2",
			Body:     fmt.Sprintf("msg %d", i),
		})
	}

	// Sends persist asynchronously; poll until all three are visible.
	var body struct {
		Messages []struct {
			Body string `json:"body"`
		} `json:"messages"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := ts.Client().Get(ts.URL + "/api/conversations/u1_u2/messages?viewer=u2")
		if err != nil {
			t.Fatalf("GET messages: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Messages) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 messages, got %d", len(body.Messages))
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Missing viewer is rejected.
	resp, err := ts.Client().Get(ts.URL + "/api/conversations/u1_u2/messages")
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 without viewer, got %d", resp.StatusCode)
	}
}
