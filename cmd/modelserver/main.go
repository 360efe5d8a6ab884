package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gniziemazity/ml-course-phase-2/pkg/config"
	"github.com/gniziemazity/ml-course-phase-2/pkg/export"
	"github.com/gniziemazity/ml-course-phase-2/pkg/history"
	"github.com/gniziemazity/ml-course-phase-2/pkg/notify"
	"github.com/gniziemazity/ml-course-phase-2/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	cfg.RegisterServerFlags(flag.CommandLine)
	flag.Parse()

	logger := config.InitLogger(cfg.Env, os.Stdout)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	doc, err := export.Load(cfg.Server.ModelPath)
	if err != nil {
		logger.Error("Failed to load model", slog.String(config.PathKey, cfg.Server.ModelPath), slog.Any("error", err))
		os.Exit(1)
	}
	h, err := server.NewModelHandler(doc, cfg.MLP.Activation)
	if err != nil {
		logger.Error("Failed to rebuild model", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Model loaded",
		slog.String(config.PathKey, cfg.Server.ModelPath),
		slog.Any("neuronCounts", doc.NeuronCounts))

	var runs server.RunLister
	if cfg.Database.URL != "" {
		db, err := history.Connect(cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to open run history", slog.Any("error", err))
			os.Exit(1)
		}
		store := history.NewStore(db)
		if err := store.Migrate(); err != nil {
			logger.Error("Failed to migrate run history", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
		runs = store
	}

	if cfg.MQTT.Broker != "" {
		client, err := notify.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			logger.Error("Failed to connect to MQTT broker", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Disconnect(250)
		if err := notify.Subscribe(client, cfg.MQTT.Topic, logger, h.Swap); err != nil {
			logger.Error("Failed to subscribe to model updates", slog.String("topic", cfg.MQTT.Topic), slog.Any("error", err))
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.NewRouter(h, runs, cfg.Server.AllowOrigins, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(srv, logger)
}

func waitForShutdown(srv *http.Server, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server gracefully stopped")
}
