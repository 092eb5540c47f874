package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"pairchat/internal/middleware"
	"pairchat/internal/model"
	"pairchat/internal/store"
)

type UserHandler struct {
	Store *store.Store
}

func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	users, err := h.Store.SearchUsers(userID, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": lo.Map(users, func(u model.User, _ int) gin.H {
		return gin.H{"id": u.ID, "username": u.Username}
	})})
}

func (h *UserHandler) Contacts(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	users, err := h.Store.Contacts(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": lo.Map(users, func(u model.User, _ int) gin.H {
		return gin.H{"id": u.ID, "name": u.Username}
	})})
}
