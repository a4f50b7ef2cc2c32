package sdk

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/slippage"
	"perp-sdk/pkg/statsapi"
)

var hundred = decimal.NewFromInt(100)

// MarketOrderParams opens or extends a position at market.
type MarketOrderParams struct {
	Amm      exchange.Amm
	Side     exchange.Side
	Margin   decimal.Decimal
	Leverage decimal.Decimal
	// SlippagePercent bounds the base amount received; zero is unprotected.
	SlippagePercent decimal.Decimal
	GuardOptions
}

// CreateMarketOrder quotes the open, checks collateral, derives the base
// amount limit and submits openPosition.
func (s *SDK) CreateMarketOrder(ctx context.Context, p MarketOrderParams) (exchange.Transaction, error) {
	amm, trader, err := s.tradable(p.Amm)
	if err != nil {
		return nil, err
	}
	if err := validSide(p.Side); err != nil {
		return nil, err
	}
	if err := positive("margin", p.Margin); err != nil {
		return nil, err
	}
	if err := positive("leverage", p.Leverage); err != nil {
		return nil, err
	}
	if err := slippage.Validate(p.SlippagePercent); err != nil {
		return nil, err
	}

	summary, err := s.api.OpenSummary(ctx, p.Amm.Canonical(), p.Side, p.Margin, p.Leverage)
	if err != nil {
		return nil, err
	}
	if err := s.collateral(ctx, trader, summary.TotalCost, p.GuardOptions); err != nil {
		return nil, err
	}
	baseLimit, err := slippage.BaseLimit(p.Side, summary.OutputSize, p.SlippagePercent)
	if err != nil {
		return nil, err
	}

	tx, err := s.ch.OpenPosition(ctx, amm, p.Side,
		fixedpoint.ToWireDecimal(p.Margin),
		fixedpoint.ToWireDecimal(p.Leverage),
		fixedpoint.ToWireDecimal(baseLimit))
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infof("sdk: open submitted amm=%s side=%s margin=%s leverage=%s base_limit=%s tx=%s",
		p.Amm.Canonical(), p.Side, fixedpoint.Format(p.Margin), fixedpoint.Format(p.Leverage), fixedpoint.Format(baseLimit), tx.Hash().Hex())
	return tx, nil
}

// ClosePositionParams closes all or part of a position at market.
type ClosePositionParams struct {
	Amm exchange.Amm
	// ClosePercent is the share of the position to close, in (0, 100].
	// Zero means 100.
	ClosePercent decimal.Decimal
	// SlippagePercent bounds the quote amount received; zero is unprotected.
	SlippagePercent decimal.Decimal
}

func closePercent(raw decimal.Decimal) (decimal.Decimal, error) {
	if raw.IsZero() {
		return hundred, nil
	}
	if raw.IsNegative() || raw.GreaterThan(hundred) {
		return decimal.Zero, &exchange.InvalidArgumentError{Field: "closePercent", Reason: fmt.Sprintf("must be in (0, 100], got %s", fixedpoint.Format(raw))}
	}
	return raw, nil
}

// ClosePosition requires an open position, quotes the close, derives the
// quote amount limit from the position side and submits closePosition for
// |size| * closePercent / 100.
func (s *SDK) ClosePosition(ctx context.Context, p ClosePositionParams) (exchange.Transaction, error) {
	amm, trader, err := s.tradable(p.Amm)
	if err != nil {
		return nil, err
	}
	pct, err := closePercent(p.ClosePercent)
	if err != nil {
		return nil, err
	}
	if err := slippage.Validate(p.SlippagePercent); err != nil {
		return nil, err
	}

	pos, side, err := s.openPosition(ctx, p.Amm, trader.Hex())
	if err != nil {
		return nil, err
	}
	summary, err := s.api.CloseMarketSummary(ctx, p.Amm.Canonical(), trader.Hex(), pct)
	if err != nil {
		return nil, err
	}
	quoteLimit, err := slippage.QuoteLimit(side, summary.OutputNotional, p.SlippagePercent)
	if err != nil {
		return nil, err
	}
	size := fixedpoint.Percent(pos.Size, pct).Abs()

	tx, err := s.ch.ClosePosition(ctx, amm,
		fixedpoint.ToWireDecimalRounded(size, fixedpoint.RoundDown),
		fixedpoint.ToWireDecimal(quoteLimit))
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infof("sdk: close submitted amm=%s side=%s size=%s quote_limit=%s tx=%s",
		p.Amm.Canonical(), side, fixedpoint.Format(size), fixedpoint.Format(quoteLimit), tx.Hash().Hex())
	return tx, nil
}

// openPosition fetches trader's position and fails with NoPositionError when
// it is flat. Optional fields are only touched after that check.
func (s *SDK) openPosition(ctx context.Context, amm exchange.Amm, trader string) (statsapi.PositionResponse, exchange.Side, error) {
	pos, err := s.api.Position(ctx, amm.Canonical(), trader)
	if err != nil {
		return statsapi.PositionResponse{}, "", err
	}
	if pos.IsFlat() {
		return statsapi.PositionResponse{}, "", &exchange.NoPositionError{Market: amm, Trader: trader}
	}
	if pos.Side != nil && pos.Side.Valid() {
		return pos, *pos.Side, nil
	}
	side, _ := exchange.SideFromSize(pos.Size)
	return pos, side, nil
}

// LimitOrderSpec describes one limit order within a market.
type LimitOrderSpec struct {
	Side       exchange.Side
	Price      decimal.Decimal
	Margin     decimal.Decimal
	Leverage   decimal.Decimal
	ReduceOnly bool
}

// LimitOrderParams is a limit order on Amm.
type LimitOrderParams struct {
	Amm exchange.Amm
	LimitOrderSpec
}

func (spec LimitOrderSpec) validate() error {
	if err := validSide(spec.Side); err != nil {
		return err
	}
	if err := positive("price", spec.Price); err != nil {
		return err
	}
	if err := positive("margin", spec.Margin); err != nil {
		return err
	}
	return positive("leverage", spec.Leverage)
}

func (spec LimitOrderSpec) encode(trader, amm common.Address) exchange.LimitOrder {
	return exchange.LimitOrder{
		Trader:      trader,
		Amm:         amm,
		Side:        spec.Side,
		Trigger:     fixedpoint.ToWireDecimal(spec.Price),
		QuoteAmount: fixedpoint.ToWireDecimal(spec.Margin),
		Leverage:    fixedpoint.ToWireDecimal(spec.Leverage),
		ReduceOnly:  spec.ReduceOnly,
	}
}

func encodeSpecs(trader, amm common.Address, specs []LimitOrderSpec) ([]exchange.LimitOrder, error) {
	if len(specs) == 0 {
		return nil, &exchange.InvalidArgumentError{Field: "orders", Reason: "no orders specified"}
	}
	out := make([]exchange.LimitOrder, len(specs))
	for i, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		out[i] = spec.encode(trader, amm)
	}
	return out, nil
}

// CreateLimitOrder places a limit order. Collateral checks run on the margin
// unless the order is reduce-only or checks are skipped.
func (s *SDK) CreateLimitOrder(ctx context.Context, p LimitOrderParams, opts GuardOptions) (exchange.Transaction, error) {
	amm, trader, err := s.tradable(p.Amm)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !p.ReduceOnly {
		if err := s.collateral(ctx, trader, p.Margin, opts); err != nil {
			return nil, err
		}
	}
	return s.ch.CreateLimitOrder(ctx, p.encode(trader, amm))
}

// UpdateLimitOrder replaces order id.
func (s *SDK) UpdateLimitOrder(ctx context.Context, id uint64, p LimitOrderParams) (exchange.Transaction, error) {
	amm, trader, err := s.tradable(p.Amm)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.ch.UpdateLimitOrder(ctx, id, p.encode(trader, amm))
}

// DeleteLimitOrder cancels order id on amm.
func (s *SDK) DeleteLimitOrder(ctx context.Context, amm exchange.Amm, id uint64) (exchange.Transaction, error) {
	if _, _, err := s.tradable(amm); err != nil {
		return nil, err
	}
	return s.ch.DeleteLimitOrder(ctx, id)
}

// CreateLimitOrderBatch places several orders on amm in one transaction.
func (s *SDK) CreateLimitOrderBatch(ctx context.Context, amm exchange.Amm, specs []LimitOrderSpec) (exchange.Transaction, error) {
	addr, trader, err := s.tradable(amm)
	if err != nil {
		return nil, err
	}
	orders, err := encodeSpecs(trader, addr, specs)
	if err != nil {
		return nil, err
	}
	return s.ch.CreateLimitOrderBatch(ctx, orders)
}

// UpdateLimitOrderBatch replaces ids[i] with specs[i].
func (s *SDK) UpdateLimitOrderBatch(ctx context.Context, amm exchange.Amm, ids []uint64, specs []LimitOrderSpec) (exchange.Transaction, error) {
	addr, trader, err := s.tradable(amm)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(specs) {
		return nil, &exchange.InvalidArgumentError{Field: "ids", Reason: fmt.Sprintf("%d ids for %d orders", len(ids), len(specs))}
	}
	orders, err := encodeSpecs(trader, addr, specs)
	if err != nil {
		return nil, err
	}
	return s.ch.UpdateLimitOrderBatch(ctx, ids, orders)
}

// DeleteLimitOrderBatch cancels ids on amm.
func (s *SDK) DeleteLimitOrderBatch(ctx context.Context, amm exchange.Amm, ids []uint64) (exchange.Transaction, error) {
	if _, _, err := s.tradable(amm); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &exchange.InvalidArgumentError{Field: "ids", Reason: "no ids specified"}
	}
	return s.ch.DeleteLimitOrderBatch(ctx, ids)
}

// TriggerOrderParams is a stop-loss or take-profit order.
type TriggerOrderParams struct {
	Amm   exchange.Amm
	Price decimal.Decimal
	Size  decimal.Decimal
	Type  exchange.TriggerType
}

// CreateTriggerOrder places a trigger order. Trigger orders carry no quote
// limit.
func (s *SDK) CreateTriggerOrder(ctx context.Context, p TriggerOrderParams) (exchange.Transaction, error) {
	amm, trader, err := s.tradable(p.Amm)
	if err != nil {
		return nil, err
	}
	if p.Type != exchange.TriggerStopLoss && p.Type != exchange.TriggerTakeProfit {
		return nil, &exchange.InvalidArgumentError{Field: "type", Reason: fmt.Sprintf("unknown trigger type %q", p.Type)}
	}
	if err := positive("price", p.Price); err != nil {
		return nil, err
	}
	if err := positive("size", p.Size); err != nil {
		return nil, err
	}
	return s.ch.CreateTriggerOrder(ctx, exchange.TriggerOrder{
		Trader:     trader,
		Amm:        amm,
		Trigger:    fixedpoint.ToWireDecimal(p.Price),
		Size:       fixedpoint.ToWireDecimal(p.Size),
		QuoteLimit: fixedpoint.WireDecimal{D: "0"},
		TakeProfit: p.Type == exchange.TriggerTakeProfit,
	})
}

// DeleteTriggerOrder cancels trigger order id on amm.
func (s *SDK) DeleteTriggerOrder(ctx context.Context, amm exchange.Amm, id uint64) (exchange.Transaction, error) {
	if _, _, err := s.tradable(amm); err != nil {
		return nil, err
	}
	return s.ch.DeleteTriggerOrder(ctx, id)
}
