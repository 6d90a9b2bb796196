// Package main provides the whale tracker server entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/alert"
	"github.com/whale-tracker/internal/api"
	"github.com/whale-tracker/internal/broadcast"
	"github.com/whale-tracker/internal/chain"
	"github.com/whale-tracker/internal/config"
	"github.com/whale-tracker/internal/logging"
	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/scanner"
	"github.com/whale-tracker/internal/storage"
)

// alertPublisher feeds scan events into the alert engine queue
type alertPublisher struct {
	engine *alert.Engine
}

func (p *alertPublisher) Broadcast(event models.Event) {
	p.engine.Enqueue(event)
}

func main() {
	fmt.Println("Whale Tracker Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	whaleRepo := storage.NewWhaleRepository(postgres)
	alertRepo := storage.NewAlertRepository(postgres)
	historyRepo := storage.NewAlertHistoryRepository(postgres)
	txRepo := storage.NewTransactionRepository(clickhouse)
	statsCache := storage.NewStatsCache(redis)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := txRepo.EnsureSchema(schemaCtx); err != nil {
		cancelSchema()
		logger.WithError(err).Fatal("Failed to create ClickHouse schema")
	}
	cancelSchema()

	// Initialize the chain client
	chainClient, err := chain.NewClient(&cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create chain client")
	}
	if chainClient.SampleMode() {
		logger.Warn("No RPC endpoint configured - serving sample holder data")
	}

	// Root context for background components
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Websocket fan-out hub
	hub := broadcast.NewHub(cfg.Broadcast.HeartbeatInterval)
	go hub.Run(ctx)

	// Alert engine
	alertEngine := alert.NewEngine(alertRepo, historyRepo, alert.DefaultChannels(&http.Client{Timeout: 10 * time.Second}))
	go alertEngine.Start(ctx)

	// Scan engine and scheduler
	scanEngine := scanner.NewEngine(
		scanner.Config{
			WhaleThreshold:       decimal.NewFromFloat(cfg.Tracking.WhaleThreshold),
			MovementThresholdPct: cfg.Tracking.MovementThresholdPct,
		},
		chainClient,
		whaleRepo,
		txRepo,
		statsCache,
		hub,
		&alertPublisher{engine: alertEngine},
	)

	scheduler := scanner.NewScheduler(scanEngine, cfg.Tracking.ScanInterval)
	scheduler.Start(ctx)

	logger.WithFields(map[string]interface{}{
		"interval":  cfg.Tracking.ScanInterval.String(),
		"threshold": cfg.Tracking.WhaleThreshold,
	}).Info("Scan scheduler started")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	readiness := map[string]api.Pinger{
		"postgres":   postgres,
		"clickhouse": clickhouse,
		"redis":      redis,
	}

	server := api.NewServer(serverConfig, whaleRepo, txRepo, alertRepo, historyRepo, statsCache, hub, readiness)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop the scanner first so no new events reach the hub or alert queue
	scheduler.Stop()
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
