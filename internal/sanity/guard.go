// Package sanity bounds numeric values to plausible ranges before they
// propagate between components. Implausible values are zeroed and logged,
// never turned into errors: a corrupted row should dent one figure, not
// take down a whole report.
package sanity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds the ceilings for the three value kinds the guard knows.
type Config struct {
	// CountCeiling bounds count-like integers such as workers present.
	CountCeiling int64
	// MoneyIntCeiling bounds monetary integers such as a daily wage rate.
	MoneyIntCeiling int64
	// MoneyDecimalCeiling bounds monetary decimal aggregates.
	MoneyDecimalCeiling decimal.Decimal
}

// DefaultConfig returns the production ceilings.
func DefaultConfig() Config {
	return Config{
		CountCeiling:        10_000,
		MoneyIntCeiling:     1_000_000,
		MoneyDecimalCeiling: decimal.New(1, 11), // 100,000,000,000
	}
}

// Guard clamps implausible values. Zero value is not usable; construct with
// New.
type Guard struct {
	cfg Config
}

func New(cfg Config) *Guard {
	if cfg.CountCeiling <= 0 {
		cfg.CountCeiling = DefaultConfig().CountCeiling
	}
	if cfg.MoneyIntCeiling <= 0 {
		cfg.MoneyIntCeiling = DefaultConfig().MoneyIntCeiling
	}
	if cfg.MoneyDecimalCeiling.LessThanOrEqual(decimal.Zero) {
		cfg.MoneyDecimalCeiling = DefaultConfig().MoneyDecimalCeiling
	}
	return &Guard{cfg: cfg}
}

// ClampCount bounds a count-like integer field.
func (g *Guard) ClampCount(ctx context.Context, field string, v int64) int64 {
	if v < 0 || v > g.cfg.CountCeiling {
		slog.WarnContext(ctx, "Implausible count zeroed",
			"field", field, "value", v, "ceiling", g.cfg.CountCeiling)
		return 0
	}
	return v
}

// ClampMoneyInt bounds a monetary integer field.
func (g *Guard) ClampMoneyInt(ctx context.Context, field string, v int64) int64 {
	if v < 0 || v > g.cfg.MoneyIntCeiling {
		slog.WarnContext(ctx, "Implausible monetary integer zeroed",
			"field", field, "value", v, "ceiling", g.cfg.MoneyIntCeiling)
		return 0
	}
	return v
}

// ClampDecimal bounds a monetary decimal aggregate. Totals are non-negative
// by construction, so a negative value is as implausible as an oversized
// one. Remaining and carried-forward balances are legitimately negative and
// must not be passed through here.
func (g *Guard) ClampDecimal(ctx context.Context, field string, v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() || v.Abs().GreaterThan(g.cfg.MoneyDecimalCeiling) {
		slog.WarnContext(ctx, "Implausible amount zeroed",
			"field", field, "value", v.String(), "ceiling", g.cfg.MoneyDecimalCeiling.String())
		return decimal.Zero
	}
	if repeatedDigits(v) {
		slog.WarnContext(ctx, "Repeated-digit amount zeroed",
			"field", field, "value", v.String())
		return decimal.Zero
	}
	return v
}

// repeatedDigits reports whether the value's digits are a single 1-3 digit
// group repeated three or more times, e.g. 555555 or 100100100. Such values
// show up from corrupted storage representations, not real books.
func repeatedDigits(v decimal.Decimal) bool {
	s := v.Abs().String()
	s = strings.ReplaceAll(s, ".", "")
	for groupLen := 1; groupLen <= 3; groupLen++ {
		if len(s)%groupLen != 0 {
			continue
		}
		if len(s)/groupLen < 3 {
			continue
		}
		group := s[:groupLen]
		if group == strings.Repeat("0", groupLen) {
			continue
		}
		if s == strings.Repeat(group, len(s)/groupLen) {
			return true
		}
	}
	return false
}
