// Package worker refreshes stale daily checkpoints in the background so
// that ledger reads stay on the fast path. It reacts to invalidation
// events from AMQP and additionally sweeps the database on an interval,
// which recovers checkpoints whose events were lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sitebook/internal/amqp"
	"sitebook/internal/core"
	"sitebook/internal/ledger"
	"sitebook/internal/storage"
)

type RefreshWorker struct {
	ledger  *ledger.Service
	storage *storage.SQLiteRepository
}

func NewRefreshWorker(ledger *ledger.Service, storage *storage.SQLiteRepository) *RefreshWorker {
	return &RefreshWorker{ledger: ledger, storage: storage}
}

// HandleInvalidation re-commits every stale checkpoint of the project named
// by the event. Days are refreshed in ascending order so that each commit
// can reuse the checkpoint restored just before it.
func (w *RefreshWorker) HandleInvalidation(ctx context.Context, msg *amqp.InvalidationMessage) error {
	slog.InfoContext(ctx, "Processing invalidation event",
		"project_id", msg.ProjectID,
		"date", msg.Date)

	if _, err := core.ParseDay(msg.Date); err != nil {
		return fmt.Errorf("invalid date in event: %w", err)
	}

	refreshed, err := w.refreshProject(ctx, msg.ProjectID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Invalidation event handled",
		"project_id", msg.ProjectID,
		"refreshed", refreshed)
	return nil
}

// SweepStaleCheckpoints refreshes stale checkpoints across all projects.
// This is the backup mechanism for lost or missed invalidation events.
func (w *RefreshWorker) SweepStaleCheckpoints(ctx context.Context) error {
	projects, err := w.storage.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	total := 0
	for _, p := range projects {
		refreshed, err := w.refreshProject(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to refresh project checkpoints",
				"project_id", p.ID, "error", err)
			continue
		}
		total += refreshed
	}

	if total > 0 {
		slog.InfoContext(ctx, "Stale checkpoint sweep completed",
			"projects", len(projects), "refreshed", total)
	}
	return nil
}

// RunPeriodicSweep sweeps on the given interval until ctx is done. One
// sweep runs immediately at startup to recover from worker downtime.
func (w *RefreshWorker) RunPeriodicSweep(ctx context.Context, interval time.Duration) error {
	if err := w.SweepStaleCheckpoints(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping periodic sweep", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepStaleCheckpoints(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
			}
		}
	}
}

func (w *RefreshWorker) refreshProject(ctx context.Context, projectID int64) (int, error) {
	days, err := w.storage.StaleCheckpointDays(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list stale checkpoints: %w", err)
	}

	for _, day := range days {
		if _, err := w.ledger.Commit(ctx, projectID, day); err != nil {
			return 0, fmt.Errorf("refresh checkpoint %s: %w", day, err)
		}
		slog.DebugContext(ctx, "Checkpoint refreshed",
			"project_id", projectID, "date", day.String())
	}
	return len(days), nil
}
