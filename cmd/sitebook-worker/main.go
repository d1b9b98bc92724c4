package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sitebook/internal/amqp"
	"sitebook/internal/config"
	"sitebook/internal/ledger"
	applog "sitebook/internal/log"
	"sitebook/internal/sanity"
	"sitebook/internal/storage"
	"sitebook/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
		Format:    os.Getenv("LOG_FORMAT"),
	})
	applog.SetDefault(logger)

	logger.Info("Starting sitebook-worker")

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
	refresher := worker.NewRefreshWorker(svc, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sweep loop alone keeps checkpoints converging even when the
	// broker is down or events are lost.
	go func() {
		if err := refresher.RunPeriodicSweep(ctx, cfg.SweepInterval); err != nil && err != context.Canceled {
			logger.Error("Periodic sweep stopped", "error", err)
		}
	}()

	if cfg.AMQPURL != "" {
		go func() {
			amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				if err != context.Canceled {
					logger.Error("Failed to connect AMQP client", "error", err)
				}
				return
			}
			defer amqpClient.Close()

			err = amqpClient.ConsumeInvalidations(ctx, func(msg *amqp.InvalidationMessage) error {
				return refresher.HandleInvalidation(ctx, msg)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Event consumption failed", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic sweep only")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give in-flight refreshes a moment to finish
	logger.Info("Shutting down worker...")
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
