// Package core holds the ledger domain types shared by every other package:
// calendar days, decimal amounts, the seven transaction categories and the
// daily checkpoint shape.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary amount stored as a base-10 decimal string.
//
// It is deliberately lenient: an empty, null-ish or malformed amount parses
// to zero with ok=false rather than returning an error. A single corrupted
// row must never abort a whole-project aggregation; callers that need strict
// validation (e.g. on user input) use ParseStrictAmount instead.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseStrictAmount parses a decimal string and rejects anything malformed
// or non-positive. Used at the write boundary, where bad input is an error
// rather than a row to be tolerated.
func ParseStrictAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount as its canonical decimal string. Amounts
// are transmitted and stored in this form; rounding happens only at display
// boundaries owned by callers, never here.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}
