// Package money holds the cent-denominated currency value used across the ledger.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in the smallest currency unit (cents).
type Money int64

const (
	Zero Money = 0

	// MinimumCharge is the smallest amount the processor accepts for a card charge.
	MinimumCharge Money = 100
	// MinimumTransfer is the smallest weekly payout dispatched to a worker.
	MinimumTransfer Money = 100
	// MinimumRefund is the smallest partial refund accepted.
	MinimumRefund Money = 50
)

func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDollars converts a float dollar amount, rounding half away from zero.
func FromDollars(d float64) Money {
	if d < 0 {
		return -Money(-d*100 + 0.5)
	}
	return Money(d*100 + 0.5)
}

// Parse reads a decimal dollar string such as "12", "12.5" or "12.50".
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("money: invalid fractional part in %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("money: invalid amount %q", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("money: amount %q out of range", s)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)

	m := Money(w*100 + f)
	if neg {
		m = -m
	}
	return m, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) Dollars() float64 {
	return float64(m) / 100
}

func (m Money) Add(o Money) Money {
	return m + o
}

func (m Money) Sub(o Money) Money {
	return m - o
}

func (m Money) IsZero() bool {
	return m == 0
}

func (m Money) IsNegative() bool {
	return m < 0
}

// String formats as dollars with two decimals, e.g. "150.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Sum adds a list of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
