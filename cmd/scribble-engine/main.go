package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribblestars/scribble-engine/internal/api"
	"github.com/scribblestars/scribble-engine/internal/classifier"
	"github.com/scribblestars/scribble-engine/internal/config"
	"github.com/scribblestars/scribble-engine/internal/content"
	"github.com/scribblestars/scribble-engine/internal/game"
	"github.com/scribblestars/scribble-engine/internal/realtime"
	"github.com/scribblestars/scribble-engine/internal/refresh"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting scribble-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize document store
	var store storage.Store
	if cfg.Database.DSN != "" {
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.Migrate(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		pg, err := storage.NewPostgresStore(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create document store", "error", err)
			os.Exit(1)
		}
		store = pg
		slog.Info("database connected successfully")
	} else {
		slog.Warn("no DATABASE_DSN configured, using in-memory store")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	// Load and seed level content
	library := content.NewLibrary()
	if err := library.LoadFromFile(cfg.Content.File); err != nil {
		slog.Error("failed to load level content", "file", cfg.Content.File, "error", err)
		os.Exit(1)
	}
	if err := library.Seed(initCtx, store); err != nil {
		slog.Error("failed to seed level content", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the broadcast hub; with Redis configured, events travel
	// through the bus so every instance fans out to its own subscribers
	hub := realtime.NewHub()
	var broadcaster game.Broadcaster = hub

	if cfg.Redis.Address != "" {
		bus, err := realtime.NewBus(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, hub)
		if err != nil {
			slog.Error("failed to create realtime bus", "error", err)
			os.Exit(1)
		}
		defer bus.Close()

		if err := bus.Start(ctx); err != nil {
			slog.Error("failed to start realtime bus", "error", err)
			os.Exit(1)
		}
		broadcaster = bus
	}

	// Initialize the inference client
	predictor := classifier.NewClient(cfg.Classifier.URL, classifier.WithTimeout(cfg.Classifier.Timeout))

	// Initialize the game service
	svc := game.NewService(store, library, predictor, broadcaster, game.Config{
		UnlockThreshold: cfg.Game.UnlockThreshold,
		LeaderboardSize: cfg.Game.LeaderboardSize,
	})

	// Start the leaderboard refresh worker. It feeds the local hub directly,
	// never the bus: each instance refreshes its own viewers, so running N
	// instances does not multiply the snapshots a viewer receives.
	refresher := refresh.NewRefresher(svc, hub, cfg.Realtime.LeaderboardRefreshRate)
	refresher.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, svc, library, hub, store, cfg.Realtime.WriteTimeout)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers and the bus forwarder
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("scribble-engine stopped")
}
