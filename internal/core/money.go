// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals backed by shopspring/decimal, so sums of
// statement values never accumulate floating-point error.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount.
type Money struct {
	Amount decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Amount: decimal.Zero}

// NewMoney wraps a decimal amount.
func NewMoney(amount decimal.Decimal) Money {
	return Money{Amount: amount}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// No rounding is applied.
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,345") -> 12.345, nil
//	ParseMoney("abc") -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Amount: d}, nil
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

// Round2 rounds to two decimal places, half away from zero.
func (m Money) Round2() Money {
	return Money{Amount: m.Amount.Round(2)}
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

// String returns the shortest exact representation, e.g. "2234.56".
func (m Money) String() string {
	return m.Amount.String()
}

// Validate rejects negative statement values.
func (m Money) Validate() error {
	if m.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Sum adds every amount exactly.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON renders the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Amount.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		return ErrInvalidAmount
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
