// Package types provides common types used across Patron.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scale is the number of Money units per major currency unit.
// Amounts carry four decimal places so that percentage fees on cent-denominated
// prices stay exact (9.99 at 20% is a fee of 1.998).
const Scale int64 = 10000

// Money represents a monetary value in ten-thousandths of the major unit.
// All arithmetic is integer-only with no floating point.
//
// Examples:
//   - USD(999) = $9.99 (Amount 99900)
//   - USD(999).ApplyRate(BasisPoints(2000)) = $1.998 (Amount 19980)
type Money struct {
	Amount   int64  `json:"amount"`   // Ten-thousandths of the major unit
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// Common currency constructors

// USD creates a Money value in US Dollars from cents.
func USD(cents int64) Money { return FromMinor(cents, "usd") }

// EUR creates a Money value in Euros from cents.
func EUR(cents int64) Money { return FromMinor(cents, "eur") }

// GBP creates a Money value in British Pounds from pence.
func GBP(pence int64) Money { return FromMinor(pence, "gbp") }

// FromMinor creates a Money value from an amount in the minor (1/100) unit.
func FromMinor(minor int64, currency string) Money {
	return Money{Amount: minor * (Scale / 100), Currency: strings.ToLower(currency)}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// ParseMoney parses a decimal major-unit string such as "9.99" or "5".
// At most four decimal places are accepted.
func ParseMoney(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("money: parse %q: empty string", s)
	}

	in := s
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Money{}, fmt.Errorf("money: parse %q: no digits", in)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return Money{}, fmt.Errorf("money: parse %q: invalid digits", in)
	}
	if len(frac) > 4 {
		return Money{}, fmt.Errorf("money: parse %q: more than 4 decimal places", in)
	}
	if whole == "" {
		whole = "0"
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", in, err)
	}

	var minor int64
	if frac != "" {
		minor, err = strconv.ParseInt(frac+strings.Repeat("0", 4-len(frac)), 10, 64)
		if err != nil {
			return Money{}, fmt.Errorf("money: parse %q: %w", in, err)
		}
	}

	amount := major*Scale + minor
	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: strings.ToLower(currency)}, nil
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// ApplyRate returns the share of m given by r, rounded half away from zero
// to the nearest Money unit.
func (m Money) ApplyRate(r Rate) Money {
	product := m.Amount * int64(r)
	share := product / int64(MaxRate)
	rem := product % int64(MaxRate)
	if rem*2 >= int64(MaxRate) {
		share++
	} else if rem*2 <= -int64(MaxRate) {
		share--
	}
	return Money{Amount: share, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// At least two decimals are shown; further non-zero decimals are kept:
// "9.99" for USD(999), "1.998" for a 20% share of it.
func (m Money) FormatMajor() string {
	abs := m.Amount
	if abs < 0 {
		abs = -abs
	}

	frac := fmt.Sprintf("%04d", abs%Scale)
	for len(frac) > 2 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}

	result := fmt.Sprintf("%d.%s", abs/Scale, frac)
	if m.Amount < 0 {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "$9.99", "€199.00", "£1.998"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"cad": "C$",
		"aud": "A$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// Sum calculates the sum of Money values in currency. All must share it.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// ──────────────────────────────────────────────────
// Rate
// ──────────────────────────────────────────────────

// Rate is a percentage expressed in basis points (1/100 of a percent).
type Rate int64

// MaxRate is 100%.
const MaxRate Rate = 10000

// BasisPoints creates a Rate from basis points: BasisPoints(2000) is 20%.
func BasisPoints(bps int64) Rate { return Rate(bps) }

// Percent creates a Rate from a percentage such as 20 or 12.5, rounded to
// the nearest basis point.
func Percent(p float64) Rate { return Rate(math.Round(p * 100)) }

// Valid reports whether the rate lies within [0%, 100%].
func (r Rate) Valid() bool { return r >= 0 && r <= MaxRate }

// Percent returns the rate as a floating point percentage, for display only.
func (r Rate) Percent() float64 { return float64(r) / 100 }

// String returns the rate as a percentage, e.g. "20%" or "12.5%".
func (r Rate) String() string {
	return strconv.FormatFloat(r.Percent(), 'f', -1, 64) + "%"
}
