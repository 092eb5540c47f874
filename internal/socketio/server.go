// Engine.io/socket.io compatible transport for the relay, websocket
// only. Mobile clients built on socket.io connect here; they share the
// hub with the plain JSON endpoint, so both surfaces see the same
// fan-out.
package socketio

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pairchat/internal/auth"
	"pairchat/internal/hub"
	"pairchat/internal/model"
	"pairchat/internal/relay"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
)

type Deps struct {
	Hub         *hub.Hub
	Dispatcher  *relay.Dispatcher
	TokenConfig auth.TokenConfig
}

type Server struct {
	hub         *hub.Hub
	dispatcher  *relay.Dispatcher
	tokenConfig auth.TokenConfig

	upgrader websocket.Upgrader
}

func NewServer(deps Deps) *Server {
	return &Server{
		hub:         deps.Hub,
		dispatcher:  deps.Dispatcher,
		tokenConfig: deps.TokenConfig,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	defer s.teardown(c)

	open := map[string]any{
		"sid":          c.sid,
		"upgrades":     []string{},
		"pingInterval": 25000,
		"pingTimeout":  20000,
		"maxPayload":   maxPayload,
	}
	openBytes, _ := json.Marshal(open)
	_ = c.writeText(string(engineOpen) + string(openBytes))

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleMessage(c, msg)
	})
}

func (s *Server) teardown(c *conn) {
	if hc := c.hubConn.Load(); hc != nil {
		s.hub.Unregister(hc)
	}
	c.close()
}

func (s *Server) handleMessage(c *conn, msg string) {
	if msg == "" {
		return
	}

	switch enginePacketType(msg[0]) {
	case enginePong:
		c.markPong()
	case engineMessage:
		s.handleSocketPayload(c, msg[1:])
	case engineClose:
		c.close()
	}
}

type connectAuth struct {
	Token string `json:"token"`
}

func (s *Server) handleSocketPayload(c *conn, payload string) {
	if payload == "" {
		return
	}

	switch socketPacketType(payload[0]) {
	case socketConnect:
		s.handleConnect(c, payload)
	case socketEvent:
		s.handleEvent(c, payload)
	}
}

func (s *Server) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}

	_, rest := parseOptionalNamespace(payload[1:])
	if rest == "" {
		_ = c.writeSocketError("Missing auth")
		c.close()
		return
	}

	var authObj connectAuth
	if err := json.Unmarshal([]byte(rest), &authObj); err != nil {
		_ = c.writeSocketError("Invalid auth")
		c.close()
		return
	}
	if authObj.Token == "" {
		_ = c.writeSocketError("Missing token")
		c.close()
		return
	}
	claims, err := auth.VerifyToken(authObj.Token, s.tokenConfig)
	if err != nil || claims == nil || claims.UserID == "" {
		_ = c.writeSocketError("Invalid authentication token")
		c.close()
		return
	}

	c.userID = claims.UserID
	c.connected.Store(true)

	hc := hub.NewConnection(claims.UserID, c)
	c.hubConn.Store(hc)
	s.hub.Register(hc)

	connectPkt, err := buildSocketConnectPacket("/", c.sid)
	if err != nil {
		c.close()
		return
	}
	_ = c.writeText(string(engineMessage) + connectPkt)
}

func (s *Server) handleEvent(c *conn, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		return
	}

	switch pkt.Event {
	case "ping":
		s.ack(c, pkt)

	case "join":
		// Legacy event from the original client; the token already
		// fixed the identity at connect, so only validate it.
		var uid string
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &uid) != nil {
			return
		}
		if uid != c.userID {
			_ = c.writeSocketError("Identity mismatch")
			return
		}
		s.ack(c, pkt)

	case "message":
		s.handleSend(c, pkt)

	case "seen":
		var body struct {
			Partner string `json:"partner"`
		}
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil || body.Partner == "" {
			return
		}
		if err := s.dispatcher.Seen(c.userID, body.Partner); err != nil {
			_ = c.writeSocketError("Storage unavailable")
			return
		}
		s.ack(c, pkt)
	}
}

func (s *Server) handleSend(c *conn, pkt socketEventPacket) {
	// Accepts both the current shape ("kind") and the original
	// client's ("type").
	var body struct {
		Receiver string            `json:"receiver"`
		Content  string            `json:"content"`
		Kind     model.MessageKind `json:"kind"`
		Type     model.MessageKind `json:"type"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	kind := body.Kind
	if kind == "" {
		kind = body.Type
	}

	msg, err := s.dispatcher.Send(c.userID, c.hubConn.Load(), body.Receiver, body.Content, kind)
	if err != nil {
		reason := "Storage unavailable"
		if errors.Is(err, relay.ErrInvalidMessage) {
			reason = err.Error()
		}
		if pkt.ID != nil {
			if ackPayload, err2 := buildSocketAckPacket(pkt.Namespace, *pkt.ID, gin.H{"ok": false, "error": reason}); err2 == nil {
				_ = c.writeText(string(engineMessage) + ackPayload)
			}
			return
		}
		_ = c.writeSocketError(reason)
		return
	}

	if pkt.ID != nil {
		if ackPayload, err := buildSocketAckPacket(pkt.Namespace, *pkt.ID, gin.H{"ok": true, "message": msg}); err == nil {
			_ = c.writeText(string(engineMessage) + ackPayload)
		}
		return
	}
	// No ack requested: push the stored copy back to the sending
	// device so it converges like the others.
	if data, err := json.Marshal(msg); err == nil {
		_ = c.WriteEvent("message", data)
	}
}

func (s *Server) ack(c *conn, pkt socketEventPacket) {
	if pkt.ID == nil {
		return
	}
	ackPayload, err := buildSocketAckPacket(pkt.Namespace, *pkt.ID)
	if err == nil {
		_ = c.writeText(string(engineMessage) + ackPayload)
	}
}

type conn struct {
	ws *websocket.Conn

	sid string

	connected atomic.Bool
	userID    string
	hubConn   atomic.Pointer[hub.Connection]

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(25 * time.Second),
	}
}

// WriteEvent frames a hub broadcast as a socket.io event packet, so
// the conn can sit in the hub next to plain JSON connections.
func (c *conn) WriteEvent(event string, data []byte) error {
	packet, err := buildSocketEventPacket("/", nil, event, json.RawMessage(data))
	if err != nil {
		return err
	}
	return c.writeText(string(engineMessage) + packet)
}

func (c *conn) Close() error {
	c.close()
	return nil
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.ws.Close()
}

func (c *conn) writeText(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > 20*time.Second {
			c.pingMu.Unlock()
			c.close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(25 * time.Second)
			c.pingMu.Unlock()
			_ = c.writeText(string(enginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}

func (c *conn) writeSocketError(msg string) error {
	packet, err := buildSocketEventPacket("/", nil, "error", gin.H{"message": msg})
	if err != nil {
		return err
	}
	return c.writeText(string(engineMessage) + packet)
}
