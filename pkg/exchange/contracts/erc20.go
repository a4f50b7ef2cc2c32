package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"perp-sdk/pkg/exchange"
)

// MaxUint256 is the allowance granted by a max approval.
var MaxUint256 = new(big.Int).Set(math.MaxBig256)

// ERC20 binds the collateral token.
type ERC20 struct {
	*boundContract
}

var _ exchange.CollateralToken = (*ERC20)(nil)

// NewERC20 binds the token at address.
func NewERC20(address common.Address, backend Backend, signer *Signer) (*ERC20, error) {
	_, parsed, err := parsedABIs()
	if err != nil {
		return nil, err
	}
	return &ERC20{boundContract: newBound("ERC20", address, parsed, backend, signer)}, nil
}

// Address returns the token address.
func (t *ERC20) Address() common.Address { return t.address }

// BalanceOf returns owner's scaled balance.
func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.uint256Call(ctx, "balanceOf", owner)
}

// Allowance returns the scaled amount spender may pull from owner.
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.uint256Call(ctx, "allowance", owner, spender)
}

// Approve sets spender's allowance to amount.
func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) (exchange.Transaction, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, &exchange.InvalidArgumentError{Field: "amount", Reason: "approval amount must be non-negative"}
	}
	return t.transact(ctx, "approve", spender, amount)
}

// Decimals returns the token's decimals.
func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("contracts: ERC20.decimals: empty result")
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (t *ERC20) uint256Call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contracts: ERC20.%s: empty result", method)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
