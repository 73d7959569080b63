// Package core holds the domain model: transactions, budgets, the per-user
// document, money parsing and the pure aggregation/budget arithmetic.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in whole cents. All arithmetic happens on cents;
// decimals exist only at the parse and display boundaries.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmountToCents converts a user-entered decimal string to positive
// cents. Both dot and comma decimal separators are accepted; anything past
// the second decimal place is rounded half-up.
//
// Examples:
//
//	ParseAmountToCents("12.34")  -> 1234, nil
//	ParseAmountToCents("12,345") -> 1235, nil
//	ParseAmountToCents("-5")     -> 0, ErrInvalidAmount
func ParseAmountToCents(s string) (int64, error) {
	s = normalizeDecimalSeparator(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func normalizeDecimalSeparator(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ',':
			out = append(out, '.')
		case ' ', '\t':
			// ignore stray whitespace
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// ParseSignedCents parses a decimal string that may be zero or negative.
// Balance overrides use it; transaction amounts go through
// ParseAmountToCents.
func ParseSignedCents(s string) (int64, error) {
	s = normalizeDecimalSeparator(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// Pounds returns the amount as a float64 for display only. Calculations
// stay on cents.
func (m Money) Pounds() float64 {
	return float64(m.Cents) / 100.0
}

// Format renders the amount as a display string, e.g. "£12.34" or "-£0.50".
func (m Money) Format() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s£%d.%02d", sign, cents/100, cents%100)
}
