package ledger

import (
	"context"
	"fmt"

	"sitebook/internal/core"
)

// Resolver answers "what balance is carried into this day". It prefers the
// cached checkpoint path and falls back to incremental or full aggregation
// when checkpoints are missing. Checkpointing is an optimization, never a
// behavior change: all three paths must agree on any history.
type Resolver struct {
	checkpoints CheckpointStore
	calc        *Calculator
}

func NewResolver(checkpoints CheckpointStore, calc *Calculator) *Resolver {
	return &Resolver{checkpoints: checkpoints, calc: calc}
}

// Resolve returns the balance carried into day for the project, tagged with
// how it was obtained.
//
// With prev = day-1:
//   - no checkpoint before day: aggregate (-inf, prev], ComputedFromScratch
//   - checkpoint dated prev: its remaining balance, Checkpoint (fast path)
//   - checkpoint dated C < prev: its remaining balance plus the aggregate
//     over [C+1, prev], ComputedFromCheckpoint
func (r *Resolver) Resolve(ctx context.Context, projectID int64, day core.Day) (core.CarriedForward, error) {
	prev := day.Prev()

	cp, err := r.checkpoints.FindLatestBefore(ctx, projectID, day)
	if err != nil {
		return core.CarriedForward{}, fmt.Errorf("find checkpoint before %s: %w", day, err)
	}

	if cp == nil {
		amount, err := r.calc.NetBalance(ctx, projectID, nil, prev)
		if err != nil {
			return core.CarriedForward{}, fmt.Errorf("aggregate from scratch to %s: %w", prev, err)
		}
		return core.CarriedForward{Amount: amount, Source: core.SourceComputedFromScratch}, nil
	}

	if !cp.Date.Before(day) {
		return core.CarriedForward{}, fmt.Errorf("%w: checkpoint %s not before %s",
			core.ErrDataIntegrity, cp.Date, day)
	}

	if cp.Date.Equal(prev) {
		return core.CarriedForward{Amount: cp.RemainingBalance, Source: core.SourceCheckpoint}, nil
	}

	gapStart := cp.Date.Next()
	gap, err := r.calc.NetBalance(ctx, projectID, &gapStart, prev)
	if err != nil {
		return core.CarriedForward{}, fmt.Errorf("aggregate gap (%s, %s]: %w", cp.Date, prev, err)
	}
	return core.CarriedForward{
		Amount: cp.RemainingBalance.Add(gap),
		Source: core.SourceComputedFromCheckpoint,
	}, nil
}
