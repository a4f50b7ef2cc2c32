package sdk

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/exchange/contracts"
	"perp-sdk/pkg/fixedpoint"
)

// AddMargin posts amount of extra collateral to an open position.
func (s *SDK) AddMargin(ctx context.Context, amm exchange.Amm, amount decimal.Decimal, opts GuardOptions) (exchange.Transaction, error) {
	addr, trader, err := s.tradable(amm)
	if err != nil {
		return nil, err
	}
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	if _, _, err := s.openPosition(ctx, amm, trader.Hex()); err != nil {
		return nil, err
	}
	if err := s.collateral(ctx, trader, amount, opts); err != nil {
		return nil, err
	}
	tx, err := s.ch.AddMargin(ctx, addr, fixedpoint.ToWireDecimal(amount))
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infof("sdk: add margin submitted amm=%s amount=%s tx=%s", amm.Canonical(), fixedpoint.Format(amount), tx.Hash().Hex())
	return tx, nil
}

// RemoveMargin withdraws amount from an open position. The amount may not
// exceed the position's free collateral.
func (s *SDK) RemoveMargin(ctx context.Context, amm exchange.Amm, amount decimal.Decimal) (exchange.Transaction, error) {
	addr, trader, err := s.tradable(amm)
	if err != nil {
		return nil, err
	}
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	if _, _, err := s.openPosition(ctx, amm, trader.Hex()); err != nil {
		return nil, err
	}
	free, err := s.api.FreeCollateral(ctx, amm.Canonical(), trader.Hex())
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(free) {
		return nil, &exchange.ExcessiveMarginRemovalError{Requested: amount, Free: free}
	}
	tx, err := s.ch.RemoveMargin(ctx, addr, fixedpoint.ToWireDecimal(amount))
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infof("sdk: remove margin submitted amm=%s amount=%s tx=%s", amm.Canonical(), fixedpoint.Format(amount), tx.Hash().Hex())
	return tx, nil
}

// ApproveParams sets the clearing-house allowance. Exactly one of Amount and
// Max is expected; Max wins when both are set.
type ApproveParams struct {
	Amount decimal.Decimal
	Max    bool
}

// Approve sets the collateral allowance of the clearing house.
func (s *SDK) Approve(ctx context.Context, p ApproveParams) (exchange.Transaction, error) {
	if _, err := s.wallet(); err != nil {
		return nil, err
	}
	var amount *big.Int
	switch {
	case p.Max:
		amount = contracts.MaxUint256
	case p.Amount.IsPositive():
		amount = fixedpoint.ToScaledRounded(p.Amount, fixedpoint.Decimals, fixedpoint.RoundUp)
	default:
		return nil, &exchange.InvalidArgumentError{Field: "amount", Reason: "approve requires a positive amount or max"}
	}
	spender := s.ch.Address()
	tx, err := s.token.Approve(ctx, spender, amount)
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infof("sdk: approval submitted spender=%s max=%t tx=%s", spender.Hex(), p.Max, tx.Hash().Hex())
	return tx, nil
}
