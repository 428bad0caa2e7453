// Package money holds fixed-point monetary amounts.
//
// Amounts are stored as int64 minor units with two decimal places so that the store can
// increment balances in place without floating point drift.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount in minor units (cents).
type Money int64

func FromMinor(minor int64) Money {
	return Money(minor)
}

// FromDecimal converts d exactly; more than two decimal places is an error, never a rounding.
func FromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(Scale)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), Scale)
	}
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money(scaled.IntPart()), nil
}

func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

func (m Money) Neg() Money {
	return -m
}

func (m Money) IsNegative() bool {
	return m < 0
}

func (m Money) IsZero() bool {
	return m == 0
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "12.34" and 12.34; numbers are parsed from their text, not
// through float64. A null leaves m unchanged, like the standard decoder does for numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
