// Package money holds the decimal conventions shared by transfers, commissions and stock.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// CommissionScale is the number of decimal places commission values are kept at.
	CommissionScale int32 = 4
	// AmountScale is the number of decimal places transfer amounts are kept at.
	AmountScale int32 = 2
)

// Tolerance is the largest rounding residue accepted between a commission
// total and the sum of its shares.
var Tolerance = decimal.New(1, -CommissionScale)

// Hundred is the percentage base.
var Hundred = decimal.NewFromInt(100)

// Round4 rounds half away from zero to four decimal places.
func Round4(value decimal.Decimal) decimal.Decimal {
	return value.Round(CommissionScale)
}

// WithinTolerance reports whether |parts - total| <= Tolerance.
func WithinTolerance(total decimal.Decimal, parts ...decimal.Decimal) bool {
	sum := decimal.Zero
	for _, part := range parts {
		sum = sum.Add(part)
	}
	return sum.Sub(total).Abs().LessThanOrEqual(Tolerance)
}

// Percent returns value * pct / 100 rounded to four places.
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return Round4(value.Mul(pct).Div(Hundred))
}

// Parse reads a user-supplied decimal string and rejects values with more
// fractional digits than scale allows.
func Parse(raw string, scale int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Exponent() < -scale && !value.Equal(value.Round(scale)) {
		return decimal.Zero, fmt.Errorf("amount %q exceeds %d decimal places", raw, scale)
	}
	return value, nil
}
