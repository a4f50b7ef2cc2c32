package exchange

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-sdk/pkg/fixedpoint"
)

// ClearingHouse exposes the trading entry points of the clearing-house
// contract. Amounts use the wire encoding; market arguments are the deployed
// amm contract addresses.
type ClearingHouse interface {
	// Address returns the clearing-house contract address (the token spender).
	Address() common.Address

	// Position management.
	OpenPosition(ctx context.Context, amm common.Address, side Side, margin, leverage, baseLimit fixedpoint.WireDecimal) (Transaction, error)
	ClosePosition(ctx context.Context, amm common.Address, size, quoteLimit fixedpoint.WireDecimal) (Transaction, error)
	PartialClose(ctx context.Context, amm common.Address, ratio, quoteLimit fixedpoint.WireDecimal) (Transaction, error)
	AddMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (Transaction, error)
	RemoveMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (Transaction, error)

	// Limit orders.
	CreateLimitOrder(ctx context.Context, order LimitOrder) (Transaction, error)
	UpdateLimitOrder(ctx context.Context, id uint64, order LimitOrder) (Transaction, error)
	DeleteLimitOrder(ctx context.Context, id uint64) (Transaction, error)
	CreateLimitOrderBatch(ctx context.Context, orders []LimitOrder) (Transaction, error)
	UpdateLimitOrderBatch(ctx context.Context, ids []uint64, orders []LimitOrder) (Transaction, error)
	DeleteLimitOrderBatch(ctx context.Context, ids []uint64) (Transaction, error)

	// Trigger orders.
	CreateTriggerOrder(ctx context.Context, order TriggerOrder) (Transaction, error)
	DeleteTriggerOrder(ctx context.Context, id uint64) (Transaction, error)

	// GetPosition reads the raw position record.
	GetPosition(ctx context.Context, amm, trader common.Address) (Position, error)
}

// CollateralToken is the ERC-20 collateral used for margin. Amounts are
// scaled integers.
type CollateralToken interface {
	Address() common.Address
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (Transaction, error)
}
