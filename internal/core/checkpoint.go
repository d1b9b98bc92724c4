package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSource says how a carried-forward balance was obtained.
type BalanceSource string

const (
	// SourceCheckpoint: the previous day had a fresh checkpoint, its
	// remaining balance was used directly. The fast path.
	SourceCheckpoint BalanceSource = "checkpoint"
	// SourceComputedFromCheckpoint: an older checkpoint was found and the
	// gap up to the previous day was aggregated incrementally.
	SourceComputedFromCheckpoint BalanceSource = "computed_from_checkpoint"
	// SourceComputedFromScratch: no usable checkpoint, the whole history up
	// to the previous day was aggregated.
	SourceComputedFromScratch BalanceSource = "computed_from_scratch"
)

// Checkpoint is a persisted daily summary for one (project, day). Sparse:
// gaps of any length may separate consecutive checkpoints. Stale is set when
// a transaction dated on or before Date changes after the checkpoint was
// committed; a stale checkpoint is never used to resolve balances.
type Checkpoint struct {
	ProjectID        int64
	Date             Day
	CarriedForward   decimal.Decimal
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	RemainingBalance decimal.Decimal
	Stale            bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CarriedForward is the resolved opening balance for a day, tagged with how
// it was obtained.
type CarriedForward struct {
	Amount decimal.Decimal
	Source BalanceSource
}

// DayBreakdown carries the per-category sums behind a day's totals.
type DayBreakdown struct {
	FundTransfers            decimal.Decimal `json:"fund_transfers"`
	IncomingProjectTransfers decimal.Decimal `json:"incoming_project_transfers"`
	WagesPaid                decimal.Decimal `json:"wages_paid"`
	CashMaterialPurchases    decimal.Decimal `json:"cash_material_purchases"`
	Transportation           decimal.Decimal `json:"transportation"`
	WorkerTransfers          decimal.Decimal `json:"worker_transfers"`
	MiscExpenses             decimal.Decimal `json:"misc_expenses"`
	OutgoingProjectTransfers decimal.Decimal `json:"outgoing_project_transfers"`
}

// Income is the income side of the breakdown.
func (b DayBreakdown) Income() decimal.Decimal {
	return b.FundTransfers.Add(b.IncomingProjectTransfers)
}

// Expenses is the expense side of the breakdown.
func (b DayBreakdown) Expenses() decimal.Decimal {
	return b.WagesPaid.
		Add(b.CashMaterialPurchases).
		Add(b.Transportation).
		Add(b.WorkerTransfers).
		Add(b.MiscExpenses).
		Add(b.OutgoingProjectTransfers)
}

// DailyReport is the full ledger view for one (project, day). The ledger
// equation holds by construction:
//
//	RemainingBalance = CarriedForward + TotalIncome - TotalExpenses
//
// RemainingBalance may be negative; that is a valid business state.
type DailyReport struct {
	ProjectID        int64
	Date             Day
	CarriedForward   decimal.Decimal
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	RemainingBalance decimal.Decimal
	Source           BalanceSource
	Breakdown        DayBreakdown
	WorkersPresent   int64
}
