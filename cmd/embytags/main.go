package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/pipi20xx/emby-auto-tags/internal/api"
	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/database"
	"github.com/pipi20xx/emby-auto-tags/internal/logger"
	"github.com/pipi20xx/emby-auto-tags/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Log.Level).
		Msg("starting emby-auto-tags")

	// Config changes made through the API are written back here.
	savePath := *configPath
	if savePath == "" {
		savePath = "./config/config.yaml"
	}

	// A fresh install has no shared secret; generate one so the webhook
	// route is never open by default.
	if cfg.Webhook.SecretToken == "" {
		cfg.Webhook.SecretToken = uuid.NewString()
		if err := config.Save(cfg, savePath); err != nil {
			log.Warn().Err(err).Msg("failed to persist generated webhook token")
		} else {
			log.Info().Msg("generated webhook secret token")
		}
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	hub := websocket.NewHub()
	go hub.Run()

	// Feed application logs to websocket clients now that the hub exists.
	log.Stream().SetHub(hub)

	server, err := api.NewServer(db.Conn(), hub, cfg, savePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
