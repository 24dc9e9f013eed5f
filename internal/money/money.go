package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// Currency is the ISO code amounts are denominated in.
	Currency = "DZD"
	// Places is the number of decimal places amounts are rounded to.
	Places = 2
)

// ParseAmount parses a decimal money string, rejecting negatives and rounding
// to the standard number of places.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative: %s", s)
	}
	return d.Round(Places), nil
}

// Format renders an amount for display, e.g. "2500.00 DA".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places) + " DA"
}

// LineTotal returns unit price × quantity.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
