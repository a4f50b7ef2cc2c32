package exchange

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"perp-sdk/pkg/fixedpoint"
)

// ErrTraderRequired is returned by read queries on a read-only SDK when no
// trader address is supplied.
var ErrTraderRequired = errors.New("exchange: trader address required in read-only mode")

// UnsupportedMarketError reports a market identifier that is not deployed on
// the active instance.
type UnsupportedMarketError struct {
	Market   Amm
	Instance string
}

func (e *UnsupportedMarketError) Error() string {
	return fmt.Sprintf("exchange: amm %s not supported on instance %s", e.Market, e.Instance)
}

// ReadOnlyModeError is returned by mutating operations when no signing key
// was configured.
type ReadOnlyModeError struct{}

func (e *ReadOnlyModeError) Error() string {
	return "exchange: sdk initialised as read-only, private key not provided"
}

// ChainMismatchError reports an RPC endpoint connected to the wrong chain.
type ChainMismatchError struct {
	Instance string
	Expected *big.Int
	Actual   *big.Int
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("exchange: rpc chain id %s does not match instance %s (chain id %s)", e.Actual, e.Instance, e.Expected)
}

// InsufficientBalanceError is returned when the collateral balance cannot
// cover the required amount.
type InsufficientBalanceError struct {
	Required decimal.Decimal
	Balance  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("exchange: insufficient balance, required: %s", fixedpoint.Format(e.Required))
}

// NoPositionError is returned by operations that need an open position.
type NoPositionError struct {
	Market Amm
	Trader string
}

func (e *NoPositionError) Error() string {
	return fmt.Sprintf("exchange: no position found for amm %s", e.Market)
}

// ExcessiveMarginRemovalError is returned when a margin removal exceeds the
// free collateral of the position.
type ExcessiveMarginRemovalError struct {
	Requested decimal.Decimal
	Free      decimal.Decimal
}

func (e *ExcessiveMarginRemovalError) Error() string {
	return fmt.Sprintf("exchange: remove amount %s beyond free collateral %s",
		fixedpoint.Format(e.Requested), fixedpoint.Format(e.Free))
}

// InvalidArgumentError reports caller input rejected before any I/O.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("exchange: invalid %s: %s", e.Field, e.Reason)
}
