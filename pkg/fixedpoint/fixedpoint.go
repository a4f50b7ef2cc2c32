package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the scale of every protocol amount ("wei").
const Decimals int32 = 18

// Rounding selects the direction used when an amount has more fractional
// digits than the scaled representation can hold.
type Rounding int

const (
	// RoundHalfAway rounds to the nearest unit, ties away from zero.
	RoundHalfAway Rounding = iota
	// RoundDown truncates toward zero.
	RoundDown
	// RoundUp rounds away from zero.
	RoundUp
)

func (r Rounding) String() string {
	switch r {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	default:
		return "half-away"
	}
}

// ToScaled converts a human amount into its scaled integer form, rounding
// half away from zero. Fractions of a unit cannot be represented on-chain.
func ToScaled(amount decimal.Decimal, decimals int32) *big.Int {
	return ToScaledRounded(amount, decimals, RoundHalfAway)
}

// ToScaledRounded converts a human amount into its scaled integer form using
// the given rounding direction.
func ToScaledRounded(amount decimal.Decimal, decimals int32, mode Rounding) *big.Int {
	return round(amount, decimals, mode).Shift(decimals).BigInt()
}

// FromScaled converts a scaled integer back into human units. The conversion
// is exact.
func FromScaled(value *big.Int, decimals int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -decimals)
}

// Round rounds amount to the given number of fractional digits.
func Round(amount decimal.Decimal, places int32, mode Rounding) decimal.Decimal {
	return round(amount, places, mode)
}

func round(amount decimal.Decimal, places int32, mode Rounding) decimal.Decimal {
	switch mode {
	case RoundDown:
		return amount.RoundDown(places)
	case RoundUp:
		return amount.RoundUp(places)
	default:
		return amount.Round(places)
	}
}

// Percent returns amount * percent / 100 without any intermediate rounding.
func Percent(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Shift(-2)
}

// Parse reads a decimal amount from its string representation. Empty input is
// rejected so that a missing API field never silently becomes zero.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("fixedpoint: empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fixedpoint: parse %q: %w", raw, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders an amount in plain notation with trailing zeros trimmed.
func Format(amount decimal.Decimal) string {
	return amount.String()
}
