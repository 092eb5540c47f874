package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pairchat/internal/middleware"
	"pairchat/internal/model"
	"pairchat/internal/relay"
	"pairchat/internal/store"
)

type MessageHandler struct {
	Store      *store.Store
	Dispatcher *relay.Dispatcher
}

// History returns the ordered conversation with a partner. Fetching it
// counts as viewing the conversation, so it also fires the read
// receipt unless the caller opts out with ?seen=false (pollers).
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	partner := c.Param("partner")
	if partner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid partner id"})
		return
	}

	after := int64(0)
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor format"})
			return
		}
		after = v
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor format"})
			return
		}
		limit = v
	}

	if c.Query("seen") != "false" {
		if err := h.Dispatcher.Seen(userID, partner); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
			return
		}
	}

	msgs, err := h.Store.History(userID, partner, after, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendBody struct {
	Receiver string            `json:"receiver"`
	Content  string            `json:"content"`
	Kind     model.MessageKind `json:"kind"`
}

// Send is the REST fallback for clients without a live socket.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := h.Dispatcher.Send(userID, nil, body.Receiver, body.Content, body.Kind)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	previews, err := h.Store.Conversations(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	resp := make([]gin.H, 0, len(previews))
	for _, p := range previews {
		name := ""
		if partner, err := h.Store.UserByID(p.PartnerID); err == nil {
			name = partner.Username
		}
		resp = append(resp, gin.H{
			"id":                 p.PartnerID,
			"name":               name,
			"lastMessagePreview": previewText(p),
			"lastKind":           p.LastKind,
			"lastTimestamp":      p.LastAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": resp})
}

// Media messages carry a URL as content; the list screen shows a
// placeholder instead.
func previewText(p model.ConversationPreview) string {
	switch p.LastKind {
	case model.KindImage:
		return "[image]"
	case model.KindAudio:
		return "[audio]"
	}
	return p.LastMessage
}
