package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pairchat/internal/auth"
	"pairchat/internal/config"
	"pairchat/internal/server"
	"pairchat/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.GinMode)

	var st *store.Store
	if cfg.DataDir != "" {
		st, err = store.Open(cfg.DataDir, logger)
	} else {
		logger.Warn("DATA_DIR not set, messages will not survive a restart")
		st, err = store.OpenInMemory(logger)
	}
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "pairchat",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		UploadDir:   cfg.UploadDir,
		BaseURL:     cfg.BaseURL,
		Logger:      logger,
	})

	logger.Info("listening", "addr", fmt.Sprintf(":%d", cfg.Port))
	if err := server.Run(cfg, router); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
