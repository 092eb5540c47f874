package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pairchat/internal/auth"
	"pairchat/internal/hub"
	"pairchat/internal/model"
	"pairchat/internal/relay"
)

type WebSocketHandler struct {
	Hub         *hub.Hub
	Dispatcher  *relay.Dispatcher
	TokenConfig auth.TokenConfig
}

type clientMessage struct {
	Type     string            `json:"type"`
	Receiver string            `json:"receiver,omitempty"`
	Content  string            `json:"content,omitempty"`
	Kind     model.MessageKind `json:"kind,omitempty"`
	Partner  string            `json:"partner,omitempty"`
}

type serverMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
	Error string          `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter frames hub events as JSON envelopes. The mutex serializes
// the read-loop replies with hub fan-out from other goroutines.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) write(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWriter) WriteEvent(event string, data []byte) error {
	return w.write(serverMessage{Type: "update", Event: event, Body: data})
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	claims, err := auth.VerifyToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := hub.NewConnection(claims.UserID, writer)
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			_ = writer.write(serverMessage{Type: "pong"})

		case "message":
			stored, err := h.Dispatcher.Send(claims.UserID, conn, msg.Receiver, msg.Content, msg.Kind)
			if err != nil {
				reason := "Storage unavailable"
				if errors.Is(err, relay.ErrInvalidMessage) {
					reason = err.Error()
				}
				_ = writer.write(serverMessage{Type: "error", Event: "message", Error: reason})
				continue
			}
			// Ack to the originating device; the echo skipped it.
			body, err := json.Marshal(stored)
			if err == nil {
				_ = writer.write(serverMessage{Type: "update", Event: "message", Body: body})
			}

		case "seen":
			if msg.Partner == "" {
				continue
			}
			if err := h.Dispatcher.Seen(claims.UserID, msg.Partner); err != nil {
				_ = writer.write(serverMessage{Type: "error", Event: "seen", Error: "Storage unavailable"})
			}
		}
	}
}
