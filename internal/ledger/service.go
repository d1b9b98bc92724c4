package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sitebook/internal/core"
	"sitebook/internal/sanity"
)

// Service is the daily ledger entry point: it orchestrates carried-forward
// resolution and same-day aggregation into a full report, and persists
// reports as checkpoints on commit.
type Service struct {
	resolver    *Resolver
	calc        *Calculator
	reader      TransactionReader
	checkpoints CheckpointStore
	guard       *sanity.Guard
}

func NewService(reader TransactionReader, checkpoints CheckpointStore, guard *sanity.Guard, aggregationTimeout time.Duration) *Service {
	calc := NewCalculator(reader, aggregationTimeout)
	return &Service{
		resolver:    NewResolver(checkpoints, calc),
		calc:        calc,
		reader:      reader,
		checkpoints: checkpoints,
		guard:       guard,
	}
}

// Calculator exposes the underlying cumulative calculator, mainly for
// verification tooling and tests.
func (s *Service) Calculator() *Calculator { return s.calc }

// Report produces the full daily ledger view for (projectID, day).
//
// Same-day totals are always aggregated directly from the day's rows, never
// read from a checkpoint, so the report reflects edits made after a commit.
// Totals and the breakdown pass through the sanity guard; the carried
// forward and remaining balances are exempt because negative balances are a
// valid business state.
func (s *Service) Report(ctx context.Context, projectID int64, day core.Day) (core.DailyReport, error) {
	cf, err := s.resolver.Resolve(ctx, projectID, day)
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("resolve carried forward: %w", err)
	}

	b, err := s.calc.Breakdown(ctx, projectID, &day, day)
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("aggregate day %s: %w", day, err)
	}
	b = s.clampBreakdown(ctx, b)

	workers, err := s.reader.WorkersPresent(ctx, projectID, day)
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("count workers present: %w", err)
	}

	income := s.guard.ClampDecimal(ctx, "total_income", b.Income())
	expenses := s.guard.ClampDecimal(ctx, "total_expenses", b.Expenses())

	return core.DailyReport{
		ProjectID:        projectID,
		Date:             day,
		CarriedForward:   cf.Amount,
		TotalIncome:      income,
		TotalExpenses:    expenses,
		RemainingBalance: cf.Amount.Add(income).Sub(expenses),
		Source:           cf.Source,
		Breakdown:        b,
		WorkersPresent:   s.guard.ClampCount(ctx, "workers_present", workers),
	}, nil
}

// Commit recomputes the day's report and persists it as a checkpoint,
// replacing any existing checkpoint for the same (project, day) and
// clearing its stale flag. Committing an unchanged day twice yields an
// identical checkpoint.
func (s *Service) Commit(ctx context.Context, projectID int64, day core.Day) (core.Checkpoint, error) {
	report, err := s.Report(ctx, projectID, day)
	if err != nil {
		return core.Checkpoint{}, err
	}

	cp, err := s.checkpoints.Upsert(ctx, core.Checkpoint{
		ProjectID:        projectID,
		Date:             day,
		CarriedForward:   report.CarriedForward,
		TotalIncome:      report.TotalIncome,
		TotalExpenses:    report.TotalExpenses,
		RemainingBalance: report.RemainingBalance,
	})
	if err != nil {
		return core.Checkpoint{}, fmt.Errorf("persist checkpoint %s: %w", day, err)
	}

	slog.InfoContext(ctx, "Daily ledger committed",
		"project_id", projectID,
		"date", day.String(),
		"carried_forward", report.CarriedForward.String(),
		"total_income", report.TotalIncome.String(),
		"total_expenses", report.TotalExpenses.String(),
		"remaining_balance", report.RemainingBalance.String(),
		"source", string(report.Source))

	return cp, nil
}

func (s *Service) clampBreakdown(ctx context.Context, b core.DayBreakdown) core.DayBreakdown {
	b.FundTransfers = s.guard.ClampDecimal(ctx, "fund_transfers", b.FundTransfers)
	b.IncomingProjectTransfers = s.guard.ClampDecimal(ctx, "incoming_project_transfers", b.IncomingProjectTransfers)
	b.WagesPaid = s.guard.ClampDecimal(ctx, "wages_paid", b.WagesPaid)
	b.CashMaterialPurchases = s.guard.ClampDecimal(ctx, "cash_material_purchases", b.CashMaterialPurchases)
	b.Transportation = s.guard.ClampDecimal(ctx, "transportation", b.Transportation)
	b.WorkerTransfers = s.guard.ClampDecimal(ctx, "worker_transfers", b.WorkerTransfers)
	b.MiscExpenses = s.guard.ClampDecimal(ctx, "misc_expenses", b.MiscExpenses)
	b.OutgoingProjectTransfers = s.guard.ClampDecimal(ctx, "outgoing_project_transfers", b.OutgoingProjectTransfers)
	return b
}
