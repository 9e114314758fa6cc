// Package core provides money parsing and handling utilities.
//
// Form values arrive as free text. ParseAmount is strict and used when a value
// is being validated; the lenient helpers mirror how the invoice form
// evaluates half-typed input while a user is still editing.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxCount bounds quantities and day counts.
const MaxCount = math.MaxInt32

// ParseAmount parses a decimal string, accepting a comma as decimal separator.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseNonNegative parses an amount and rejects values below zero.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// ParseCount parses a whole quantity or day count. Only plain base-10
// integers up to MaxCount are accepted: "3.7", "2e1" and "99999999999" fail.
func ParseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < -MaxCount || n > MaxCount {
		return 0, ErrInvalidCount
	}
	return n, nil
}

// FormatAmount renders an amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// decimalOrZero is the lenient counterpart of ParseAmount.
func decimalOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// leadingInt reads the integer prefix of s ("12", "3.7" -> 3, "4abc" -> 4).
// ok is false when s does not start with a digit after an optional sign, or
// when the prefix is larger than MaxCount.
func leadingInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		ok = true
		n = n*10 + int(c-'0')
		if n > MaxCount {
			return 0, false
		}
	}
	if neg {
		n = -n
	}
	return n, ok
}

// intOrZero returns the integer prefix of s, or 0.
func intOrZero(s string) int {
	n, _ := leadingInt(s)
	return n
}
