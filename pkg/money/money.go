// Package money holds the fixed-point helpers used for INR amounts.
//
// Amounts are shopspring decimals rounded to two places, half away from zero.
// Gateways that speak minor units (paise) convert at the edge.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns round(amount × rate / 100).
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// ToMinor converts a rupee amount to paise. Fractions below one paisa are
// rounded first.
func ToMinor(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

// FromMinor converts paise to rupees.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Places)
}

// Parse reads a decimal string and rounds it.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Round(d), nil
}

// Positive reports whether d is strictly greater than zero.
func Positive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}
