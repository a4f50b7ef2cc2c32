package sdk

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/exchange/contracts"
	"perp-sdk/pkg/fixedpoint"
)

// GuardOptions control the balance and allowance checks run before
// collateral-consuming calls.
type GuardOptions struct {
	// SkipChecks bypasses both the balance and the allowance check.
	SkipChecks bool
	// MaxApprove selects an unlimited approval when the allowance is short.
	// Nil means true; false approves exactly the required amount.
	MaxApprove *bool
}

func (g GuardOptions) maxApprove() bool {
	return g.MaxApprove == nil || *g.MaxApprove
}

// Bool returns a pointer to v, for GuardOptions.MaxApprove.
func Bool(v bool) *bool { return &v }

// market resolves amm against the instance. It performs no I/O.
func (s *SDK) market(amm exchange.Amm) (common.Address, error) {
	addr, ok := s.markets[amm.Canonical()]
	if !ok {
		return common.Address{}, &exchange.UnsupportedMarketError{Market: amm, Instance: s.instance.Name}
	}
	return addr, nil
}

// wallet returns the signing account or ReadOnlyModeError.
func (s *SDK) wallet() (common.Address, error) {
	if s.signer == nil {
		return common.Address{}, &exchange.ReadOnlyModeError{}
	}
	return s.signer.Address(), nil
}

// tradable runs the two I/O-free checks every mutating call starts with.
func (s *SDK) tradable(amm exchange.Amm) (common.Address, common.Address, error) {
	addr, err := s.market(amm)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	trader, err := s.wallet()
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return addr, trader, nil
}

// collateral runs the balance then the allowance check for required.
func (s *SDK) collateral(ctx context.Context, trader common.Address, required decimal.Decimal, opts GuardOptions) error {
	if opts.SkipChecks {
		return nil
	}
	if err := s.checkBalance(ctx, trader, required); err != nil {
		return err
	}
	return s.ensureAllowance(ctx, trader, required, opts.maxApprove())
}

func (s *SDK) checkBalance(ctx context.Context, trader common.Address, required decimal.Decimal) error {
	raw, err := s.token.BalanceOf(ctx, trader)
	if err != nil {
		return err
	}
	balance := fixedpoint.FromScaled(raw, fixedpoint.Decimals)
	if balance.LessThan(required) {
		return &exchange.InsufficientBalanceError{Required: required, Balance: balance}
	}
	return nil
}

// ensureAllowance approves the clearing house when its allowance is below
// required and waits for the approval to be mined.
func (s *SDK) ensureAllowance(ctx context.Context, trader common.Address, required decimal.Decimal, maxApprove bool) error {
	spender := s.ch.Address()
	raw, err := s.token.Allowance(ctx, trader, spender)
	if err != nil {
		return err
	}
	if fixedpoint.FromScaled(raw, fixedpoint.Decimals).GreaterThanOrEqual(required) {
		return nil
	}
	amount := contracts.MaxUint256
	if !maxApprove {
		amount = fixedpoint.ToScaledRounded(required, fixedpoint.Decimals, fixedpoint.RoundUp)
	}
	tx, err := s.token.Approve(ctx, spender, amount)
	if err != nil {
		return err
	}
	logx.WithContext(ctx).Infof("sdk: approval submitted spender=%s max=%t tx=%s", spender.Hex(), maxApprove, tx.Hash().Hex())
	if err := tx.Wait(ctx); err != nil {
		return fmt.Errorf("sdk: approval %s: %w", tx.Hash().Hex(), err)
	}
	return nil
}

// traderFor picks the explicit trader or falls back to the signing account.
func (s *SDK) traderFor(trader string) (string, error) {
	trader = strings.TrimSpace(trader)
	if trader != "" {
		if !common.IsHexAddress(trader) {
			return "", &exchange.InvalidArgumentError{Field: "trader", Reason: fmt.Sprintf("invalid address %q", trader)}
		}
		return common.HexToAddress(trader).Hex(), nil
	}
	if s.signer == nil {
		return "", exchange.ErrTraderRequired
	}
	return s.signer.Address().Hex(), nil
}

func positive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return &exchange.InvalidArgumentError{Field: field, Reason: fmt.Sprintf("must be positive, got %s", fixedpoint.Format(v))}
	}
	return nil
}

func validSide(side exchange.Side) error {
	if !side.Valid() {
		return &exchange.InvalidArgumentError{Field: "side", Reason: fmt.Sprintf("unknown side %q", side)}
	}
	return nil
}
