package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sitebook/internal/core"
)

// DefaultAggregationTimeout bounds one fan-out of category sums.
const DefaultAggregationTimeout = 10 * time.Second

// Calculator computes cumulative net balances by direct aggregation over
// the raw transaction history. The seven category reads for one call are
// independent and issued concurrently; a failure or timeout in any one of
// them fails the whole call. A wrong balance is worse than no balance, so
// there are no partial results.
type Calculator struct {
	reader  TransactionReader
	timeout time.Duration
}

func NewCalculator(reader TransactionReader, timeout time.Duration) *Calculator {
	if timeout <= 0 {
		timeout = DefaultAggregationTimeout
	}
	return &Calculator{reader: reader, timeout: timeout}
}

// Breakdown aggregates all seven categories over [from, to] (from nil means
// all history) and returns the per-category sums.
func (c *Calculator) Breakdown(ctx context.Context, projectID int64, from *core.Day, to core.Day) (core.DayBreakdown, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var b core.DayBreakdown
	g, ctx := errgroup.WithContext(ctx)

	sums := []struct {
		dst      *decimal.Decimal
		category core.Category
	}{
		{&b.FundTransfers, core.CategoryFundTransfer},
		{&b.CashMaterialPurchases, core.CategoryMaterialPurchase},
		{&b.WagesPaid, core.CategoryWorkerAttendance},
		{&b.Transportation, core.CategoryTransportation},
		{&b.WorkerTransfers, core.CategoryWorkerTransfer},
		{&b.MiscExpenses, core.CategoryWorkerMiscExpense},
	}
	for _, s := range sums {
		g.Go(func() error {
			v, err := c.reader.CategorySum(ctx, s.category, projectID, from, to)
			if err != nil {
				return fmt.Errorf("sum %s: %w", s.category, err)
			}
			*s.dst = v
			return nil
		})
	}
	g.Go(func() error {
		v, err := c.reader.IncomingTransferSum(ctx, projectID, from, to)
		if err != nil {
			return fmt.Errorf("sum incoming transfers: %w", err)
		}
		b.IncomingProjectTransfers = v
		return nil
	})
	g.Go(func() error {
		v, err := c.reader.OutgoingTransferSum(ctx, projectID, from, to)
		if err != nil {
			return fmt.Errorf("sum outgoing transfers: %w", err)
		}
		b.OutgoingProjectTransfers = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.DayBreakdown{}, err
	}
	return b, nil
}

// NetBalance returns income minus expenses over [from, to]. Negative is a
// valid result.
func (c *Calculator) NetBalance(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	b, err := c.Breakdown(ctx, projectID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Income().Sub(b.Expenses()), nil
}
