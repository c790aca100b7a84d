// Package money implements Bahraini dinar amounts as integer fils.
//
// All settlement arithmetic runs on Fils. Decimal values only appear at the
// edges: parsing request bodies, scanning NUMERIC columns and rendering.
package money

import (
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Fils is an amount of BHD in minor units, 1 BHD = 1000 fils.
type Fils int64

// Scale is the number of fractional digits of a BHD amount.
const Scale = 3

// Zero is the zero amount.
const Zero Fils = 0

var (
	// ErrInvalidAmount is returned when an amount cannot be represented in fils.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrOverflow is returned when arithmetic on fils leaves the int64 range.
	ErrOverflow = errors.New("amount overflow")
)

var (
	filsPerDinar = decimal.NewFromInt(1000)
	// Largest dinar amount whose fils value still fits into int64.
	maxDinar = decimal.NewFromInt(math.MaxInt64 / 1000)
)

// ToFils converts a dinar amount to fils, rounding half-up to the nearest fil.
// Negative halves round away from zero.
func ToFils(amount float64) (Fils, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, errors.Wrapf(ErrInvalidAmount, "non-finite value %v", amount)
	}
	return fromDecimal(decimal.NewFromFloat(amount))
}

// FromDecimal converts a dinar amount to fils using the same rounding as ToFils.
// Amounts outside the int64 fils range saturate.
func FromDecimal(d decimal.Decimal) Fils {
	f, err := fromDecimal(d)
	if err != nil {
		if d.IsNegative() {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return f
}

// Parse reads a dinar amount such as "450.500" or "45.25".
func Parse(s string) (Fils, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "parse %q", s)
	}
	return fromDecimal(d)
}

// Exact is FromDecimal that fails instead of saturating.
func Exact(d decimal.Decimal) (Fils, error) {
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Fils, error) {
	if d.Abs().GreaterThan(maxDinar) {
		return 0, errors.Wrapf(ErrInvalidAmount, "%s out of range", d)
	}
	return Fils(d.Mul(filsPerDinar).Round(0).IntPart()), nil
}

// ToDecimal converts fils back to a dinar decimal with three fractional digits.
func ToDecimal(f Fils) decimal.Decimal {
	return decimal.New(int64(f), -Scale)
}

// Decimal is shorthand for ToDecimal(f).
func (f Fils) Decimal() decimal.Decimal {
	return ToDecimal(f)
}

// String renders the amount with exactly three fractional digits.
func (f Fils) String() string {
	return ToDecimal(f).StringFixed(Scale)
}

// Mul returns f multiplied by a quantity, or ErrOverflow when the product
// does not fit into Fils.
func (f Fils) Mul(qty int) (Fils, error) {
	q := Fils(qty)
	if f == 0 || q == 0 {
		return 0, nil
	}
	p := f * q
	if p/q != f || (f == -1 && q == math.MinInt64) || (q == -1 && f == math.MinInt64) {
		return 0, errors.Wrapf(ErrOverflow, "%s x %d", f, qty)
	}
	return p, nil
}

// Add returns a+b, or ErrOverflow when the sum does not fit into Fils.
func Add(a, b Fils) (Fils, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, errors.Wrapf(ErrOverflow, "%s + %s", a, b)
	}
	return s, nil
}
