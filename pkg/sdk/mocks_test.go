package sdk

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/statsapi"
)

type mockTx struct {
	mock.Mock
	hash common.Hash
}

func newMockTx(hex string) *mockTx {
	tx := &mockTx{hash: common.HexToHash(hex)}
	tx.On("Wait", mock.Anything).Return(nil).Maybe()
	return tx
}

func (m *mockTx) Hash() common.Hash { return m.hash }

func (m *mockTx) Wait(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func txResult(args mock.Arguments) (exchange.Transaction, error) {
	var tx exchange.Transaction
	if v := args.Get(0); v != nil {
		tx = v.(exchange.Transaction)
	}
	return tx, args.Error(1)
}

// MockClearingHouse is a mock implementation of exchange.ClearingHouse.
type MockClearingHouse struct {
	mock.Mock
	address common.Address
}

func (m *MockClearingHouse) Address() common.Address { return m.address }

func (m *MockClearingHouse) OpenPosition(ctx context.Context, amm common.Address, side exchange.Side, margin, leverage, baseLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, amm, side, margin, leverage, baseLimit))
}

func (m *MockClearingHouse) ClosePosition(ctx context.Context, amm common.Address, size, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, amm, size, quoteLimit))
}

func (m *MockClearingHouse) PartialClose(ctx context.Context, amm common.Address, ratio, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, amm, ratio, quoteLimit))
}

func (m *MockClearingHouse) AddMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, amm, amount))
}

func (m *MockClearingHouse) RemoveMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, amm, amount))
}

func (m *MockClearingHouse) CreateLimitOrder(ctx context.Context, order exchange.LimitOrder) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, order))
}

func (m *MockClearingHouse) UpdateLimitOrder(ctx context.Context, id uint64, order exchange.LimitOrder) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, id, order))
}

func (m *MockClearingHouse) DeleteLimitOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, id))
}

func (m *MockClearingHouse) CreateLimitOrderBatch(ctx context.Context, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, orders))
}

func (m *MockClearingHouse) UpdateLimitOrderBatch(ctx context.Context, ids []uint64, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, ids, orders))
}

func (m *MockClearingHouse) DeleteLimitOrderBatch(ctx context.Context, ids []uint64) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, ids))
}

func (m *MockClearingHouse) CreateTriggerOrder(ctx context.Context, order exchange.TriggerOrder) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, order))
}

func (m *MockClearingHouse) DeleteTriggerOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, id))
}

func (m *MockClearingHouse) GetPosition(ctx context.Context, amm, trader common.Address) (exchange.Position, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).(exchange.Position), args.Error(1)
}

// MockToken is a mock implementation of exchange.CollateralToken.
type MockToken struct {
	mock.Mock
	address common.Address
}

func (m *MockToken) Address() common.Address { return m.address }

func (m *MockToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	args := m.Called(ctx, owner)
	var v *big.Int
	if got := args.Get(0); got != nil {
		v = got.(*big.Int)
	}
	return v, args.Error(1)
}

func (m *MockToken) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	args := m.Called(ctx, owner, spender)
	var v *big.Int
	if got := args.Get(0); got != nil {
		v = got.(*big.Int)
	}
	return v, args.Error(1)
}

func (m *MockToken) Approve(ctx context.Context, spender common.Address, amount *big.Int) (exchange.Transaction, error) {
	return txResult(m.Called(ctx, spender, amount))
}

// MockStatsAPI is a mock implementation of StatsAPI.
type MockStatsAPI struct {
	mock.Mock
}

func (m *MockStatsAPI) MarkPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	args := m.Called(ctx, amm)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsAPI) IndexPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	args := m.Called(ctx, amm)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsAPI) FundingRate(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	args := m.Called(ctx, amm)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsAPI) AmmInfo(ctx context.Context, amm exchange.Amm) (statsapi.AmmInfoResponse, error) {
	args := m.Called(ctx, amm)
	return args.Get(0).(statsapi.AmmInfoResponse), args.Error(1)
}

func (m *MockStatsAPI) Position(ctx context.Context, amm exchange.Amm, trader string) (statsapi.PositionResponse, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).(statsapi.PositionResponse), args.Error(1)
}

func (m *MockStatsAPI) MakerPosition(ctx context.Context, amm exchange.Amm, trader string) (statsapi.MakerPositionResponse, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).(statsapi.MakerPositionResponse), args.Error(1)
}

func (m *MockStatsAPI) OpenSummary(ctx context.Context, amm exchange.Amm, side exchange.Side, margin, leverage decimal.Decimal) (statsapi.OpenSummaryResponse, error) {
	args := m.Called(ctx, amm, side, margin, leverage)
	return args.Get(0).(statsapi.OpenSummaryResponse), args.Error(1)
}

func (m *MockStatsAPI) CloseMarketSummary(ctx context.Context, amm exchange.Amm, trader string, closePercent decimal.Decimal) (statsapi.CloseSummaryResponse, error) {
	args := m.Called(ctx, amm, trader, closePercent)
	return args.Get(0).(statsapi.CloseSummaryResponse), args.Error(1)
}

func (m *MockStatsAPI) CloseLimitSummary(ctx context.Context, amm exchange.Amm, trader string, trigger, closePercent decimal.Decimal) (statsapi.CloseSummaryResponse, error) {
	args := m.Called(ctx, amm, trader, trigger, closePercent)
	return args.Get(0).(statsapi.CloseSummaryResponse), args.Error(1)
}

func (m *MockStatsAPI) FreeCollateral(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsAPI) MarginChangeSummary(ctx context.Context, amm exchange.Amm, trader string, margin decimal.Decimal) (statsapi.MarginChangeSummaryResponse, error) {
	args := m.Called(ctx, amm, trader, margin)
	return args.Get(0).(statsapi.MarginChangeSummaryResponse), args.Error(1)
}

func (m *MockStatsAPI) Balances(ctx context.Context, trader string) (statsapi.BalancesResponse, error) {
	args := m.Called(ctx, trader)
	return args.Get(0).(statsapi.BalancesResponse), args.Error(1)
}

func (m *MockStatsAPI) EthPrice(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsAPI) MarketTrades(ctx context.Context, p statsapi.TradeParams) (statsapi.Page[statsapi.MarketTrade], error) {
	args := m.Called(ctx, p)
	return args.Get(0).(statsapi.Page[statsapi.MarketTrade]), args.Error(1)
}

func (m *MockStatsAPI) Fundings(ctx context.Context, p statsapi.FundingParams) (statsapi.Page[statsapi.FundingPaymentEvent], error) {
	args := m.Called(ctx, p)
	return args.Get(0).(statsapi.Page[statsapi.FundingPaymentEvent]), args.Error(1)
}

func (m *MockStatsAPI) Orders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).([]statsapi.Order), args.Error(1)
}

func (m *MockStatsAPI) TriggerOrders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error) {
	args := m.Called(ctx, amm, trader)
	return args.Get(0).([]statsapi.Order), args.Error(1)
}

func (m *MockStatsAPI) OrderBook(ctx context.Context, amm exchange.Amm) (statsapi.OrderBook, error) {
	args := m.Called(ctx, amm)
	return args.Get(0).(statsapi.OrderBook), args.Error(1)
}

// MockChain is a mock implementation of ChainReader.
type MockChain struct {
	mock.Mock
}

func (m *MockChain) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	var v *big.Int
	if got := args.Get(0); got != nil {
		v = got.(*big.Int)
	}
	return v, args.Error(1)
}
