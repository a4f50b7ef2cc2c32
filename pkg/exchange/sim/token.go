package sim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

// Token implements exchange.CollateralToken over the simulator.
type Token struct {
	ex *Exchange
}

var _ exchange.CollateralToken = (*Token)(nil)

func (t *Token) Address() common.Address { return t.ex.collateral }

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	t.ex.mu.Lock()
	defer t.ex.mu.Unlock()
	return fixedpoint.ToScaled(t.ex.balances[owner], fixedpoint.Decimals), nil
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	t.ex.mu.Lock()
	defer t.ex.mu.Unlock()
	if v := t.ex.allowances[allowanceKey{owner: owner, spender: spender}]; v != nil {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// Approve replaces the sender's allowance for spender.
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (exchange.Transaction, error) {
	const method = "approve"
	if amount == nil || amount.Sign() < 0 {
		return nil, &RevertError{Method: method, Reason: "invalid amount"}
	}
	t.ex.mu.Lock()
	defer t.ex.mu.Unlock()
	t.ex.allowances[allowanceKey{owner: t.ex.sender, spender: spender}] = new(big.Int).Set(amount)
	return t.ex.settleLocked(method), nil
}
