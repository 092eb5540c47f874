package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pairchat/internal/auth"
	"pairchat/internal/model"
)

func dialWS(t *testing.T, srvURL, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return resp
}

func TestWebSocketPingPong(t *testing.T) {
	deps := testDeps(t)
	r := NewRouter(deps)

	user, err := deps.Store.CreateUser("alice", "x", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	tok, err := auth.CreateToken(user.ID, deps.TokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWS(t, srv.URL, tok)
	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	resp := readEnvelope(t, conn)
	if resp["type"] != "pong" {
		t.Fatalf("expected pong, got %v", resp)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	r := NewRouter(testDeps(t))
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebSocketSendDeliversAndEchoes(t *testing.T) {
	deps := testDeps(t)
	r := NewRouter(deps)

	alice, err := deps.Store.CreateUser("alice", "x", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bob, err := deps.Store.CreateUser("bob", "x", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	aliceTok, _ := auth.CreateToken(alice.ID, deps.TokenConfig)
	bobTok, _ := auth.CreateToken(bob.ID, deps.TokenConfig)

	srv := httptest.NewServer(r)
	defer srv.Close()

	alicePhone := dialWS(t, srv.URL, aliceTok)
	aliceLaptop := dialWS(t, srv.URL, aliceTok)
	bobPhone := dialWS(t, srv.URL, bobTok)

	if err := alicePhone.WriteJSON(map[string]any{
		"type": "message", "receiver": bob.ID, "content": "hello", "kind": "text",
	}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// Receiver gets the pushed copy.
	push := readEnvelope(t, bobPhone)
	if push["type"] != "update" || push["event"] != "message" {
		t.Fatalf("unexpected push: %v", push)
	}
	body, _ := push["body"].(map[string]any)
	if body["content"] != "hello" || body["sender"] != alice.ID {
		t.Fatalf("unexpected body: %v", body)
	}

	// Sender's other device gets the echo, the sending one gets the ack.
	echo := readEnvelope(t, aliceLaptop)
	if echo["event"] != "message" {
		t.Fatalf("unexpected echo: %v", echo)
	}
	ack := readEnvelope(t, alicePhone)
	ackBody, _ := ack["body"].(map[string]any)
	if ack["event"] != "message" || ackBody["content"] != "hello" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	if ackBody["delivered"] != true {
		t.Fatalf("expected delivered ack, got %v", ackBody)
	}

	// Bob marks the conversation read; both sides are notified.
	if err := bobPhone.WriteJSON(map[string]any{"type": "seen", "partner": alice.ID}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	seen := readEnvelope(t, alicePhone)
	if seen["event"] != "seen" {
		t.Fatalf("unexpected seen event: %v", seen)
	}
	seenBody, _ := seen["body"].(map[string]any)
	if seenBody["by"] != bob.ID || seenBody["with"] != alice.ID {
		t.Fatalf("unexpected seen body: %v", seenBody)
	}

	msgs, err := deps.Store.History(alice.ID, bob.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Seen {
		t.Fatalf("expected stored message seen, got %+v", msgs)
	}
}

func TestWebSocketSendInvalidReceiver(t *testing.T) {
	deps := testDeps(t)
	r := NewRouter(deps)

	alice, err := deps.Store.CreateUser("alice", "x", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	tok, _ := auth.CreateToken(alice.ID, deps.TokenConfig)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWS(t, srv.URL, tok)
	if err := conn.WriteJSON(map[string]any{
		"type": "message", "receiver": "nobody", "content": "hi", "kind": model.KindText,
	}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	resp := readEnvelope(t, conn)
	if resp["type"] != "error" || resp["event"] != "message" {
		t.Fatalf("expected error envelope, got %v", resp)
	}
}
