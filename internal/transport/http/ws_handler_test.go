package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/richgram/richgram-server/internal/proto"
)

type testFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	if err := wsjson.Write(ctx, conn, map[string]any{"type": frameType, "data": data}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

// mustFrame reads frames until one matches the wanted event name, or an
// error frame when event is empty.
func mustFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) testFrame {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for {
		var frame testFrame
		if err := wsjson.Read(readCtx, conn, &frame); err != nil {
			t.Fatalf("read frame while waiting for %q: %v", event, err)
		}
		if event == "" && frame.Type == proto.OutboundTypeError {
			return frame
		}
		if frame.Event == event {
			return frame
		}
	}
}

func TestWebSocketGlobalChat(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts)
	bob := dialWS(t, ctx, ts)

	sendFrame(t, ctx, alice, proto.InboundTypeJoin, proto.JoinData{Token: aliceToken})
	sendFrame(t, ctx, bob, proto.InboundTypeJoin, proto.JoinData{Token: bobToken})

	sendFrame(t, ctx, alice, proto.InboundTypeSwitch, proto.SwitchData{Kind: "global"})
	mustFrame(t, ctx, alice, proto.EventNameHistory)
	sendFrame(t, ctx, bob, proto.InboundTypeSwitch, proto.SwitchData{Kind: "global"})

	hist := mustFrame(t, ctx, bob, proto.EventNameHistory)
	var history proto.EventHistory
	if err := json.Unmarshal(hist.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Kind != "global" || len(history.Messages) != 0 {
		t.Fatalf("unexpected history: %+v", history)
	}

	sendFrame(t, ctx, alice, proto.InboundTypeSend, proto.SendData{Kind: "text", Text: "hello world"})

	frame := mustFrame(t, ctx, bob, proto.EventNameMessage)
	var msg proto.EventMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.From != "alice" || msg.Text != "hello world" || msg.Kind != "text" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ID == 0 || msg.TS == 0 {
		t.Fatalf("message missing id or timestamp: %+v", msg)
	}
}

func TestWebSocketPrivateChat(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	// Make them friends over the REST API.
	status, _ := doJSON(t, "POST", ts.URL+"/api/friends", aliceToken, map[string]string{"username": "bob"})
	if status != 201 {
		t.Fatalf("send request: expected 201, got %d", status)
	}
	status, _ = doJSON(t, "PUT", ts.URL+"/api/friends/respond", bobToken, map[string]string{
		"username": "alice",
		"action":   "accept",
	})
	if status != 200 {
		t.Fatalf("accept: expected 200, got %d", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts)
	bob := dialWS(t, ctx, ts)
	sendFrame(t, ctx, alice, proto.InboundTypeJoin, proto.JoinData{Token: aliceToken})
	sendFrame(t, ctx, bob, proto.InboundTypeJoin, proto.JoinData{Token: bobToken})

	sendFrame(t, ctx, alice, proto.InboundTypeSwitch, proto.SwitchData{Kind: "private", With: "bob"})
	mustFrame(t, ctx, alice, proto.EventNameHistory)
	sendFrame(t, ctx, bob, proto.InboundTypeSwitch, proto.SwitchData{Kind: "private", With: "alice"})
	mustFrame(t, ctx, bob, proto.EventNameHistory)

	sendFrame(t, ctx, alice, proto.InboundTypeSend, proto.SendData{Kind: "text", Text: "psst"})

	frame := mustFrame(t, ctx, bob, proto.EventNameMessage)
	var msg proto.EventMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.From != "alice" || msg.With != "alice" || msg.Text != "psst" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestWebSocketRenameKeepsCounterpart(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	status, _ := doJSON(t, "POST", ts.URL+"/api/friends", aliceToken, map[string]string{"username": "bob"})
	if status != 201 {
		t.Fatalf("send request: expected 201, got %d", status)
	}
	status, _ = doJSON(t, "PUT", ts.URL+"/api/friends/respond", bobToken, map[string]string{
		"username": "alice",
		"action":   "accept",
	})
	if status != 200 {
		t.Fatalf("accept: expected 200, got %d", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts)
	bob := dialWS(t, ctx, ts)
	sendFrame(t, ctx, alice, proto.InboundTypeJoin, proto.JoinData{Token: aliceToken})
	sendFrame(t, ctx, bob, proto.InboundTypeJoin, proto.JoinData{Token: bobToken})

	sendFrame(t, ctx, alice, proto.InboundTypeSwitch, proto.SwitchData{Kind: "private", With: "bob"})
	mustFrame(t, ctx, alice, proto.EventNameHistory)
	sendFrame(t, ctx, bob, proto.InboundTypeSwitch, proto.SwitchData{Kind: "private", With: "alice"})
	mustFrame(t, ctx, bob, proto.EventNameHistory)

	// Rename alice mid-session; her live subscription moves to the new
	// identity before bob's next message lands.
	status, _ = doJSON(t, "PUT", ts.URL+"/api/users/profile", aliceToken, map[string]string{
		"username": "alicia",
	})
	if status != 200 {
		t.Fatalf("rename: expected 200, got %d", status)
	}
	time.Sleep(100 * time.Millisecond)

	sendFrame(t, ctx, bob, proto.InboundTypeSend, proto.SendData{Kind: "text", Text: "hi"})

	frame := mustFrame(t, ctx, alice, proto.EventNameMessage)
	var msg proto.EventMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.From != "bob" || msg.Text != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.With != "bob" {
		t.Fatalf("expected counterpart %q, got %q", "bob", msg.With)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendFrame(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Token: "not-a-token"})

	frame := mustFrame(t, ctx, conn, "")
	if frame.Error == nil || frame.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden error frame, got %+v", frame)
	}
}

func TestWebSocketFriendsChangedPush(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bob := dialWS(t, ctx, ts)
	sendFrame(t, ctx, bob, proto.InboundTypeJoin, proto.JoinData{Token: bobToken})
	// Round-trip through the hub so the join is processed before the
	// friend request fires the notification.
	sendFrame(t, ctx, bob, proto.InboundTypeSwitch, proto.SwitchData{Kind: "global"})
	mustFrame(t, ctx, bob, proto.EventNameHistory)

	status, _ := doJSON(t, "POST", ts.URL+"/api/friends", aliceToken, map[string]string{"username": "bob"})
	if status != 201 {
		t.Fatalf("send request: expected 201, got %d", status)
	}

	mustFrame(t, ctx, bob, proto.EventNameFriendsChanged)
}
