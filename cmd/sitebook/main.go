package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sitebook/internal/amqp"
	"sitebook/internal/config"
	apphttp "sitebook/internal/http"
	"sitebook/internal/ledger"
	applog "sitebook/internal/log"
	"sitebook/internal/sanity"
	"sitebook/internal/storage"
)

func main() {
	// .env is for local development; absent in containers
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
		Format:    os.Getenv("LOG_FORMAT"),
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The decimal ceiling keeps its built-in default.
	guard := sanity.New(sanity.Config{
		CountCeiling:    cfg.SanityCountCeiling,
		MoneyIntCeiling: cfg.SanityMoneyIntCeiling,
	})

	svc := ledger.NewService(repo, repo, guard, cfg.AggregationTimeout)

	// AMQP is optional: without it the worker's periodic sweep still
	// refreshes stale checkpoints, just later.
	var publisher apphttp.InvalidationPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without invalidation events", "error", err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, guard, publisher, apphttp.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting sitebook server", "port", cfg.Port, "db", cfg.SQLiteDBPath,
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
