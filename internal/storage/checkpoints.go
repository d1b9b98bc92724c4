package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"sitebook/internal/core"
)

const checkpointColumns = `project_id, summary_date, carried_forward, total_income,
	total_expenses, remaining_balance, stale, created_at, updated_at`

// FindLatestBefore implements ledger.CheckpointStore. Only fresh
// checkpoints qualify; a stale one is invisible here so the resolver falls
// back to aggregation. Duplicate dates cannot exist under the primary key.
func (r *SQLiteRepository) FindLatestBefore(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM daily_summaries
		 WHERE project_id = ? AND summary_date < ? AND stale = 0
		 ORDER BY summary_date DESC LIMIT 1`,
		projectID, day.String())
	return r.scanCheckpoint(row, "find latest checkpoint")
}

// FindExact implements ledger.CheckpointStore.
func (r *SQLiteRepository) FindExact(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM daily_summaries
		 WHERE project_id = ? AND summary_date = ?`,
		projectID, day.String())
	return r.scanCheckpoint(row, "find checkpoint")
}

// Upsert implements ledger.CheckpointStore. A re-commit fully replaces the
// row and clears the stale flag; checkpoints are never partially updated.
func (r *SQLiteRepository) Upsert(ctx context.Context, cp core.Checkpoint) (core.Checkpoint, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_summaries
		 (project_id, summary_date, carried_forward, total_income, total_expenses, remaining_balance, stale)
		 VALUES (?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(project_id, summary_date) DO UPDATE SET
		   carried_forward = excluded.carried_forward,
		   total_income = excluded.total_income,
		   total_expenses = excluded.total_expenses,
		   remaining_balance = excluded.remaining_balance,
		   stale = 0,
		   updated_at = CURRENT_TIMESTAMP`,
		cp.ProjectID, cp.Date.String(),
		core.FormatAmount(cp.CarriedForward),
		core.FormatAmount(cp.TotalIncome),
		core.FormatAmount(cp.TotalExpenses),
		core.FormatAmount(cp.RemainingBalance))
	if err != nil {
		return core.Checkpoint{}, core.NewStoreError("upsert checkpoint", err)
	}

	saved, err := r.FindExact(ctx, cp.ProjectID, cp.Date)
	if err != nil {
		return core.Checkpoint{}, err
	}
	if saved == nil {
		return core.Checkpoint{}, fmt.Errorf("%w: checkpoint vanished after upsert", core.ErrDataIntegrity)
	}
	return *saved, nil
}

func (r *SQLiteRepository) scanCheckpoint(row *sql.Row, op string) (*core.Checkpoint, error) {
	var (
		cp        core.Checkpoint
		date      string
		cf, ti    string
		te, rb    string
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	err := row.Scan(&cp.ProjectID, &date, &cf, &ti, &te, &rb, &cp.Stale, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStoreError(op, err)
	}

	cp.Date, err = core.ParseDay(date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad summary_date %q", core.ErrDataIntegrity, date)
	}

	// Checkpoint amounts are derived data written by this process; a value
	// that no longer parses means the row is corrupt, not tolerable.
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"carried_forward", cf, &cp.CarriedForward},
		{"total_income", ti, &cp.TotalIncome},
		{"total_expenses", te, &cp.TotalExpenses},
		{"remaining_balance", rb, &cp.RemainingBalance},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s %q", core.ErrDataIntegrity, f.name, f.raw)
		}
		*f.dst = v
	}

	cp.CreatedAt = createdAt.Time
	cp.UpdatedAt = updatedAt.Time
	return &cp, nil
}
