// Package ledger implements the daily financial ledger engine: per-category
// aggregation, cumulative balances, carried-forward resolution against
// sparse checkpoints, and the daily report/commit service.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"sitebook/internal/core"
)

// TransactionReader is the engine's read access to the transaction store.
// Implementations are read-only; they absorb malformed amount rows as zero
// and surface store failures as core.StoreError.
//
// Range bounds are inclusive. A nil from means "from the beginning of
// recorded history".
type TransactionReader interface {
	// CategorySum totals one single-direction category over a range,
	// applying the category's inclusion rule (cash-only material
	// purchases; attendance sums the paid amount regardless of the
	// presence flag). Project fund transfers are bidirectional and are
	// not addressable here; use the dedicated transfer sums.
	CategorySum(ctx context.Context, category core.Category, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error)

	// IncomingTransferSum totals project fund transfers received by the
	// project over the range.
	IncomingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error)

	// OutgoingTransferSum totals project fund transfers sent by the
	// project over the range.
	OutgoingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error)

	// WorkersPresent counts workers marked present on one day.
	WorkersPresent(ctx context.Context, projectID int64, day core.Day) (int64, error)
}

// CheckpointStore is the engine's access to persisted daily summaries.
type CheckpointStore interface {
	// FindLatestBefore returns the most recent non-stale checkpoint
	// strictly before day, or nil when none exists. Two checkpoints
	// sharing a date is a data-integrity error, never a silent pick.
	FindLatestBefore(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error)

	// FindExact returns the checkpoint at exactly (projectID, day), or
	// nil when none exists.
	FindExact(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error)

	// Upsert inserts or fully replaces the checkpoint with cp's natural
	// key. Checkpoints are never partially updated.
	Upsert(ctx context.Context, cp core.Checkpoint) (core.Checkpoint, error)
}
