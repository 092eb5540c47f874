package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"pairchat/internal/auth"
	"pairchat/internal/handler"
	"pairchat/internal/hub"
	"pairchat/internal/middleware"
	"pairchat/internal/relay"
	"pairchat/internal/socketio"
	"pairchat/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	UploadDir   string
	BaseURL     string
	Logger      *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	wsHub := hub.New()
	dispatcher := relay.NewDispatcher(deps.Store, wsHub, deps.Logger)

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Limiter: authLimiter}
	r.POST("/v1/auth/signup", authHandler.Signup)
	r.POST("/v1/auth/login", authHandler.Login)

	if deps.UploadDir != "" {
		r.Static("/uploads", deps.UploadDir)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.GET("/users/search", userHandler.Search)
	protected.GET("/contacts", userHandler.Contacts)

	messageHandler := &handler.MessageHandler{Store: deps.Store, Dispatcher: dispatcher}
	protected.GET("/conversations", messageHandler.Conversations)
	protected.GET("/messages/:partner", messageHandler.History)
	protected.POST("/messages", messageHandler.Send)

	uploadHandler := &handler.UploadHandler{Dir: deps.UploadDir, BaseURL: deps.BaseURL}
	protected.POST("/upload", uploadHandler.Upload)

	wsHandler := &handler.WebSocketHandler{Hub: wsHub, Dispatcher: dispatcher, TokenConfig: deps.TokenConfig}
	r.GET("/ws", wsHandler.Serve)

	sio := socketio.NewServer(socketio.Deps{Hub: wsHub, Dispatcher: dispatcher, TokenConfig: deps.TokenConfig})
	r.GET("/socket.io/", gin.WrapH(sio))

	return r
}
