// Package money holds the fixed-point helpers shared by the ledger.
//
// Every monetary value is a decimal.Decimal with two fractional digits once it
// leaves the calculator. Storage keeps integer cents; the wire keeps strings.
package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for amounts and percentages.
const Scale int32 = 2

var (
	// Cent is the smallest representable amount.
	Cent = decimal.New(1, -Scale)
	// Hundred is 100 at scale zero, used for percentage math.
	Hundred = decimal.NewFromInt(100)
	// Tolerance is the reconciliation slack allowed between split sums and totals.
	Tolerance = Cent
	// MaxAmount is the largest magnitude accepted from callers.
	MaxAmount = decimal.New(1, 12).Sub(Cent)

	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// RoundingMode selects how a value is brought to a fixed scale.
type RoundingMode string

const (
	HalfUp   RoundingMode = "HALF_UP"
	HalfEven RoundingMode = "HALF_EVEN"
	Down     RoundingMode = "DOWN"
	Up       RoundingMode = "UP"
)

// Rounding is a rounding policy passed explicitly to calculations.
type Rounding struct {
	Mode   RoundingMode
	Places int32
}

// DefaultRounding is HALF_UP at two places.
var DefaultRounding = Rounding{Mode: HalfUp, Places: Scale}

// ParseRounding returns the policy for a mode name at the default scale.
func ParseRounding(mode string) (Rounding, error) {
	m := RoundingMode(strings.ToUpper(strings.TrimSpace(mode)))
	switch m {
	case HalfUp, HalfEven, Down, Up:
		return Rounding{Mode: m, Places: Scale}, nil
	case "":
		return DefaultRounding, nil
	}
	return Rounding{}, fmt.Errorf("unknown rounding mode %q", mode)
}

// Apply rounds d according to the policy. HALF_UP rounds ties away from zero,
// which matches "half up" for the non-negative values the ledger works with.
func (r Rounding) Apply(d decimal.Decimal) decimal.Decimal {
	switch r.Mode {
	case HalfEven:
		return d.RoundBank(r.Places)
	case Down:
		return d.RoundDown(r.Places)
	case Up:
		return d.RoundUp(r.Places)
	default:
		return d.Round(r.Places)
	}
}

// Unit is the smallest step at the policy's scale.
func (r Rounding) Unit() decimal.Decimal {
	return decimal.New(1, -r.Places)
}

// FromCents converts integer cents into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Scale)
}

// ToCents converts a decimal amount into integer cents. The amount must already
// be at scale two; anything finer is an error rather than a silent rounding.
func ToCents(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(Scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), Scale)
	}
	if shifted.LessThan(minCents) || shifted.GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %s is out of range", d.String())
	}
	return shifted.IntPart(), nil
}

// Format renders d with exactly two fractional digits, e.g. "54.00".
// It is the canonical form used on the wire and in settlement ids.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Parse reads a decimal string and rejects values with more than two
// fractional digits or a magnitude above MaxAmount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("amount %s exceeds %s", d.String(), Format(MaxAmount))
	}
	if _, err := ToCents(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
