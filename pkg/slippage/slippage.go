// Package slippage turns a tolerated slippage percentage into the hard limit
// passed to the clearing house.
//
// A zero limit means "unconstrained" to the contract, so zero slippage maps to
// a zero limit rather than to the expected amount.
package slippage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

// BaseLimit returns the base asset amount limit for opening a position.
// expectedSize is the size quoted for the trade in human units.
//
// BUY: expectedSize - slippage, rounded down.
// SELL: expectedSize + slippage, rounded up.
func BaseLimit(side exchange.Side, expectedSize, slippagePercent decimal.Decimal) (decimal.Decimal, error) {
	return limit("base", side, expectedSize, slippagePercent)
}

// QuoteLimit returns the quote asset amount limit for closing a position.
// side is the side of the existing position and expectedNotional the notional
// quoted for the close.
func QuoteLimit(side exchange.Side, expectedNotional, slippagePercent decimal.Decimal) (decimal.Decimal, error) {
	return limit("quote", side, expectedNotional, slippagePercent)
}

var hundred = decimal.NewFromInt(100)

// Validate accepts slippage percentages in [0, 100). At 100 a buy-side limit
// collapses to the zero sentinel and above it the limit turns negative.
func Validate(slippagePercent decimal.Decimal) error {
	if slippagePercent.IsNegative() || slippagePercent.GreaterThanOrEqual(hundred) {
		return &exchange.InvalidArgumentError{
			Field:  "slippagePercent",
			Reason: fmt.Sprintf("must be in [0, 100), got %s", fixedpoint.Format(slippagePercent)),
		}
	}
	return nil
}

func limit(kind string, side exchange.Side, expected, slippagePercent decimal.Decimal) (decimal.Decimal, error) {
	if err := Validate(slippagePercent); err != nil {
		return decimal.Zero, err
	}
	if !side.Valid() {
		return decimal.Zero, &exchange.InvalidArgumentError{Field: "side", Reason: fmt.Sprintf("unknown side %q for %s limit", side, kind)}
	}
	if slippagePercent.IsZero() {
		return decimal.Zero, nil
	}

	slip := fixedpoint.Percent(expected, slippagePercent)
	if side == exchange.SideBuy {
		return fixedpoint.Round(expected.Sub(slip), fixedpoint.Decimals, fixedpoint.RoundDown), nil
	}
	return fixedpoint.Round(expected.Add(slip), fixedpoint.Decimals, fixedpoint.RoundUp), nil
}
