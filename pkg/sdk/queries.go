package sdk

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/statsapi"
	"perp-sdk/pkg/stream"
)

// Read operations. An empty trader falls back to the signing account and
// fails with exchange.ErrTraderRequired on a read-only SDK.

// GetPosition returns the indexed position of trader on amm.
func (s *SDK) GetPosition(ctx context.Context, amm exchange.Amm, trader string) (statsapi.PositionResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.PositionResponse{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.PositionResponse{}, err
	}
	return s.api.Position(ctx, amm.Canonical(), who)
}

// GetOnChainPosition reads the position record straight from the clearing
// house.
func (s *SDK) GetOnChainPosition(ctx context.Context, amm exchange.Amm, trader string) (exchange.Position, error) {
	addr, err := s.market(amm)
	if err != nil {
		return exchange.Position{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return exchange.Position{}, err
	}
	return s.ch.GetPosition(ctx, addr, common.HexToAddress(who))
}

// GetMakerPosition returns the liquidity provided by trader on amm.
func (s *SDK) GetMakerPosition(ctx context.Context, amm exchange.Amm, trader string) (statsapi.MakerPositionResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.MakerPositionResponse{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.MakerPositionResponse{}, err
	}
	return s.api.MakerPosition(ctx, amm.Canonical(), who)
}

// GetUpnl returns the unrealized pnl of an open position.
func (s *SDK) GetUpnl(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	return s.positionField(ctx, amm, trader, "unrealizedPnl", func(p statsapi.PositionResponse) *decimal.Decimal { return p.UnrealizedPnl })
}

// GetFundingPayment returns the pending funding payment of an open position.
func (s *SDK) GetFundingPayment(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	return s.positionField(ctx, amm, trader, "fundingPayment", func(p statsapi.PositionResponse) *decimal.Decimal { return p.FundingPayment })
}

// GetLiquidationPrice returns the liquidation price of an open position.
func (s *SDK) GetLiquidationPrice(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	return s.positionField(ctx, amm, trader, "liquidationPrice", func(p statsapi.PositionResponse) *decimal.Decimal { return p.LiquidationPrice })
}

func (s *SDK) positionField(ctx context.Context, amm exchange.Amm, trader, name string, field func(statsapi.PositionResponse) *decimal.Decimal) (decimal.Decimal, error) {
	if _, err := s.market(amm); err != nil {
		return decimal.Zero, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return decimal.Zero, err
	}
	pos, _, err := s.openPosition(ctx, amm, who)
	if err != nil {
		return decimal.Zero, err
	}
	v := field(pos)
	if v == nil {
		return decimal.Zero, fmt.Errorf("sdk: position on %s has no %s", amm.Canonical(), name)
	}
	return *v, nil
}

// GetLimitOrders lists the resting limit orders of trader on amm.
func (s *SDK) GetLimitOrders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error) {
	if _, err := s.market(amm); err != nil {
		return nil, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return nil, err
	}
	return s.api.Orders(ctx, amm.Canonical(), who)
}

// GetTriggerOrders lists the resting trigger orders of trader on amm.
func (s *SDK) GetTriggerOrders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error) {
	if _, err := s.market(amm); err != nil {
		return nil, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return nil, err
	}
	return s.api.TriggerOrders(ctx, amm.Canonical(), who)
}

// GetOrderBook returns the aggregated limit order book of amm.
func (s *SDK) GetOrderBook(ctx context.Context, amm exchange.Amm) (statsapi.OrderBook, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.OrderBook{}, err
	}
	return s.api.OrderBook(ctx, amm.Canonical())
}

// GetBalances returns the native and collateral balances of trader.
func (s *SDK) GetBalances(ctx context.Context, trader string) (statsapi.BalancesResponse, error) {
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.BalancesResponse{}, err
	}
	return s.api.Balances(ctx, who)
}

// GetOpenSummary quotes a market open without submitting it.
func (s *SDK) GetOpenSummary(ctx context.Context, amm exchange.Amm, side exchange.Side, margin, leverage decimal.Decimal) (statsapi.OpenSummaryResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.OpenSummaryResponse{}, err
	}
	if err := validSide(side); err != nil {
		return statsapi.OpenSummaryResponse{}, err
	}
	if err := positive("margin", margin); err != nil {
		return statsapi.OpenSummaryResponse{}, err
	}
	if err := positive("leverage", leverage); err != nil {
		return statsapi.OpenSummaryResponse{}, err
	}
	return s.api.OpenSummary(ctx, amm.Canonical(), side, margin, leverage)
}

// GetCloseMarketSummary quotes a market close of closePercent (zero means
// 100) of trader's position.
func (s *SDK) GetCloseMarketSummary(ctx context.Context, amm exchange.Amm, trader string, closePercentage decimal.Decimal) (statsapi.CloseSummaryResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	pct, err := closePercent(closePercentage)
	if err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	return s.api.CloseMarketSummary(ctx, amm.Canonical(), who, pct)
}

// GetCloseLimitSummary quotes a close of closePercent executed at trigger.
func (s *SDK) GetCloseLimitSummary(ctx context.Context, amm exchange.Amm, trader string, trigger, closePercentage decimal.Decimal) (statsapi.CloseSummaryResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	if err := positive("trigger", trigger); err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	pct, err := closePercent(closePercentage)
	if err != nil {
		return statsapi.CloseSummaryResponse{}, err
	}
	return s.api.CloseLimitSummary(ctx, amm.Canonical(), who, trigger, pct)
}

// GetMarginChangeSummary quotes the effect of a signed margin change.
func (s *SDK) GetMarginChangeSummary(ctx context.Context, amm exchange.Amm, trader string, margin decimal.Decimal) (statsapi.MarginChangeSummaryResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.MarginChangeSummaryResponse{}, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return statsapi.MarginChangeSummaryResponse{}, err
	}
	return s.api.MarginChangeSummary(ctx, amm.Canonical(), who, margin)
}

// GetFreeCollateral returns the margin that can be removed from trader's
// position.
func (s *SDK) GetFreeCollateral(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	if _, err := s.market(amm); err != nil {
		return decimal.Zero, err
	}
	who, err := s.traderFor(trader)
	if err != nil {
		return decimal.Zero, err
	}
	return s.api.FreeCollateral(ctx, amm.Canonical(), who)
}

// GetMarkPrice returns the mark price of amm.
func (s *SDK) GetMarkPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	if _, err := s.market(amm); err != nil {
		return decimal.Zero, err
	}
	return s.api.MarkPrice(ctx, amm.Canonical())
}

// GetIndexPrice returns the index price of amm.
func (s *SDK) GetIndexPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	if _, err := s.market(amm); err != nil {
		return decimal.Zero, err
	}
	return s.api.IndexPrice(ctx, amm.Canonical())
}

// GetFundingRate returns the current funding rate of amm.
func (s *SDK) GetFundingRate(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	if _, err := s.market(amm); err != nil {
		return decimal.Zero, err
	}
	return s.api.FundingRate(ctx, amm.Canonical())
}

// GetAmmInfo returns the market parameters and 24h statistics of amm.
func (s *SDK) GetAmmInfo(ctx context.Context, amm exchange.Amm) (statsapi.AmmInfoResponse, error) {
	if _, err := s.market(amm); err != nil {
		return statsapi.AmmInfoResponse{}, err
	}
	return s.api.AmmInfo(ctx, amm.Canonical())
}

// GetMaxLeverage is 1 / initMarginRatio.
func (s *SDK) GetMaxLeverage(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	info, err := s.GetAmmInfo(ctx, amm)
	if err != nil {
		return decimal.Zero, err
	}
	if !info.InitMarginRatio.IsPositive() {
		return decimal.Zero, fmt.Errorf("sdk: amm %s reports init margin ratio %s", amm.Canonical(), fixedpoint.Format(info.InitMarginRatio))
	}
	return decimal.NewFromInt(1).DivRound(info.InitMarginRatio, fixedpoint.Decimals), nil
}

// GetMaintenanceMarginRatio returns the maintenance margin ratio of amm.
func (s *SDK) GetMaintenanceMarginRatio(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	info, err := s.GetAmmInfo(ctx, amm)
	if err != nil {
		return decimal.Zero, err
	}
	return info.MaintenanceMarginRatio, nil
}

// GetEthPrice returns the ETH/USD price used for collateral valuation.
func (s *SDK) GetEthPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.api.EthPrice(ctx)
}

// GetTrades pages through executed trades. The market is only checked when
// p.Amm is set.
func (s *SDK) GetTrades(ctx context.Context, p statsapi.TradeParams) (statsapi.Page[statsapi.MarketTrade], error) {
	if p.Amm != "" {
		if _, err := s.market(p.Amm); err != nil {
			return statsapi.Page[statsapi.MarketTrade]{}, err
		}
		p.Amm = p.Amm.Canonical()
	}
	return s.api.MarketTrades(ctx, p)
}

// GetFundings pages through funding settlements. The market is only checked
// when p.Amm is set.
func (s *SDK) GetFundings(ctx context.Context, p statsapi.FundingParams) (statsapi.Page[statsapi.FundingPaymentEvent], error) {
	if p.Amm != "" {
		if _, err := s.market(p.Amm); err != nil {
			return statsapi.Page[statsapi.FundingPaymentEvent]{}, err
		}
		p.Amm = p.Amm.Canonical()
	}
	return s.api.Fundings(ctx, p)
}

// GetCollateralBalance returns trader's collateral token balance.
func (s *SDK) GetCollateralBalance(ctx context.Context, trader string) (decimal.Decimal, error) {
	who, err := s.traderFor(trader)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := s.token.BalanceOf(ctx, common.HexToAddress(who))
	if err != nil {
		return decimal.Zero, err
	}
	return fixedpoint.FromScaled(raw, fixedpoint.Decimals), nil
}

// GetAllowance returns the collateral allowance trader granted the clearing
// house.
func (s *SDK) GetAllowance(ctx context.Context, trader string) (decimal.Decimal, error) {
	who, err := s.traderFor(trader)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := s.token.Allowance(ctx, common.HexToAddress(who), s.ch.Address())
	if err != nil {
		return decimal.Zero, err
	}
	return fixedpoint.FromScaled(raw, fixedpoint.Decimals), nil
}

// Subscribe streams live events, optionally narrowed to amm.
func (s *SDK) Subscribe(ctx context.Context, event stream.Event, amm exchange.Amm) (*stream.Subscription, error) {
	if amm != "" {
		if _, err := s.market(amm); err != nil {
			return nil, err
		}
	}
	if s.stream == nil {
		return nil, fmt.Errorf("sdk: instance %s has no websocket endpoint", s.instance.Name)
	}
	return s.stream.Subscribe(ctx, event, amm.Canonical())
}
