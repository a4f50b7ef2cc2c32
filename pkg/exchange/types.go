package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/fixedpoint"
)

// Core trading domain types shared by the contract bindings, the statistics
// API client and the SDK facade.

// Side represents trade direction.
type Side string

const (
	// SideBuy opens or extends a long.
	SideBuy Side = "buy"
	// SideSell opens or extends a short.
	SideSell Side = "sell"
)

// ParseSide accepts buy/sell and the long/short aliases.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return SideBuy, nil
	case "sell", "short":
		return SideSell, nil
	default:
		return "", &InvalidArgumentError{Field: "side", Reason: fmt.Sprintf("unknown side %q", raw)}
	}
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Uint8 is the contract encoding of the side (0 = buy, 1 = sell).
func (s Side) Uint8() uint8 {
	if s == SideSell {
		return 1
	}
	return 0
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

// SideFromSize derives the side of a signed position size. Flat positions
// report false.
func SideFromSize(size decimal.Decimal) (Side, bool) {
	switch size.Sign() {
	case 1:
		return SideBuy, true
	case -1:
		return SideSell, true
	default:
		return "", false
	}
}

// Amm identifies a tradable market. Identifiers are case-insensitive.
type Amm string

// Canonical returns the lower-case trimmed identifier used as the table key.
func (a Amm) Canonical() Amm {
	return Amm(strings.ToLower(strings.TrimSpace(string(a))))
}

func (a Amm) String() string { return string(a) }

// TriggerType distinguishes stop-loss from take-profit trigger orders.
type TriggerType string

const (
	TriggerStopLoss   TriggerType = "stop_loss"
	TriggerTakeProfit TriggerType = "take_profit"
)

// Position is the on-chain position record. Size is signed: positive long,
// negative short, zero flat. Margin and OpenNotional are unsigned.
type Position struct {
	Size         decimal.Decimal
	Margin       decimal.Decimal
	OpenNotional decimal.Decimal
}

// IsFlat reports whether the position has no size.
func (p Position) IsFlat() bool {
	return p.Size.IsZero()
}

// Side returns the direction of the open position.
func (p Position) Side() (Side, bool) {
	return SideFromSize(p.Size)
}

// Leverage is OpenNotional / Margin, zero when no margin is posted.
func (p Position) Leverage() decimal.Decimal {
	if p.Margin.IsZero() {
		return decimal.Zero
	}
	return p.OpenNotional.DivRound(p.Margin, fixedpoint.Decimals)
}

// EntryPrice is OpenNotional / |Size|, zero when flat.
func (p Position) EntryPrice() decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}
	return p.OpenNotional.DivRound(p.Size.Abs(), fixedpoint.Decimals)
}

// LimitOrder is the contract representation of a limit order. Amounts are
// already encoded for the wire.
type LimitOrder struct {
	Trader      common.Address
	Amm         common.Address
	Side        Side
	Trigger     fixedpoint.WireDecimal
	QuoteAmount fixedpoint.WireDecimal
	Leverage    fixedpoint.WireDecimal
	ReduceOnly  bool
}

// TriggerOrder is the contract representation of a stop-loss / take-profit
// order.
type TriggerOrder struct {
	Trader     common.Address
	Amm        common.Address
	Trigger    fixedpoint.WireDecimal
	Size       fixedpoint.WireDecimal
	QuoteLimit fixedpoint.WireDecimal
	TakeProfit bool
}

// Transaction is a submitted on-chain transaction.
type Transaction interface {
	// Hash returns the transaction hash.
	Hash() common.Hash
	// Wait blocks until the transaction is mined and fails if it reverted.
	Wait(ctx context.Context) error
}
