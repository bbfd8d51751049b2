package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units (US cents).
type Money int64

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a dollar amount into Money rounding half away from zero.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// Dollars builds Money from a float dollar amount. Intended for literals and tests.
func Dollars(v float64) Money {
	return FromDecimal(decimal.NewFromFloat(v))
}

// ParseAmount parses a dollar string. Malformed, empty or non-finite input
// yields zero instead of an error.
func ParseAmount(raw string) Money {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if trimmed == "" {
		return 0
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0
	}
	return FromDecimal(d)
}

// Decimal returns the dollar value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a dollar number, e.g. 79.11.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts dollar numbers or numeric strings. Malformed values decode to zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "null" {
		*m = 0
		return nil
	}
	*m = ParseAmount(raw)
	return nil
}

// applyBps multiplies the amount by basis points and rounds to whole cents.
func applyBps(m Money, bps int) Money {
	if m <= 0 || bps <= 0 {
		return 0
	}
	rate := decimal.New(int64(bps), -4)
	return Money(decimal.NewFromInt(int64(m)).Mul(rate).Round(0).IntPart())
}

// applyPercent multiplies the amount by a percentage (e.g. 15 or 12.5) rounding to cents.
func applyPercent(m Money, percent decimal.Decimal) Money {
	if m <= 0 || !percent.IsPositive() {
		return 0
	}
	return Money(decimal.NewFromInt(int64(m)).Mul(percent).Div(hundred).Round(0).IntPart())
}
