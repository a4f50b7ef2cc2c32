package sdk

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/exchange/contracts"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/statsapi"
	"perp-sdk/pkg/stream"
)

const (
	testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082796fe3f6a4ab2ed5f8d2"
	testInstances  = `
default: testnet
instances:
  testnet:
    api_base_url: http://127.0.0.1:1
    chain_id: 421614
    contracts:
      clearing_house: "0x9e8B6D29C0410B8c7E67bB151CA7C0f9F6cBa8bF"
      collateral: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
      amms:
        Milady: "0x66945724757a91199AB0B0c77EcBB90abA897F75"
`
)

var (
	testTrader = common.HexToAddress("0x63aAe05e9838a07A59D13e5978E05CdB7DbCD49A")
	testCH     = common.HexToAddress("0x9e8B6D29C0410B8c7E67bB151CA7C0f9F6cBa8bF")
	testToken  = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	testAmm    = common.HexToAddress("0x66945724757a91199AB0B0c77EcBB90abA897F75")
	milady     = exchange.Amm("milady")
)

type fixture struct {
	sdk   *SDK
	ch    *MockClearingHouse
	token *MockToken
	api   *MockStatsAPI
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.ch.AssertExpectations(t)
	f.token.AssertExpectations(t)
	f.api.AssertExpectations(t)
}

func newFixture(t *testing.T, key string, extra ...Option) *fixture {
	t.Helper()
	table, err := exchange.LoadInstancesFromReader(strings.NewReader(testInstances))
	require.NoError(t, err)

	f := &fixture{
		ch:    &MockClearingHouse{address: testCH},
		token: &MockToken{address: testToken},
		api:   &MockStatsAPI{},
	}
	opts := []Option{
		WithClearingHouse(f.ch),
		WithCollateralToken(f.token),
		WithStatsAPI(f.api),
	}
	if key != "" {
		opts = append(opts, WithoutChainCheck())
	}
	opts = append(opts, extra...)
	f.sdk, err = New(context.Background(), Config{PrivateKey: key, Instances: table}, opts...)
	require.NoError(t, err)
	return f
}

func dec(raw string) decimal.Decimal { return decimal.RequireFromString(raw) }

func decEq(raw string) interface{} {
	want := dec(raw)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func bigEq(want *big.Int) interface{} {
	return mock.MatchedBy(func(v *big.Int) bool { return v != nil && v.Cmp(want) == 0 })
}

func wire(raw string) fixedpoint.WireDecimal { return fixedpoint.ToWireDecimal(dec(raw)) }

func scaled(raw string) *big.Int { return fixedpoint.ToScaled(dec(raw), fixedpoint.Decimals) }

func (f *fixture) fundTrader(balance, allowance string) {
	f.token.On("BalanceOf", mock.Anything, testTrader).Return(scaled(balance), nil).Once()
	f.token.On("Allowance", mock.Anything, testTrader, testCH).Return(scaled(allowance), nil).Once()
}

func (f *fixture) openPositionOf(size string, side *exchange.Side) {
	f.api.On("Position", mock.Anything, milady, testTrader.Hex()).
		Return(statsapi.PositionResponse{Amm: milady, Trader: testTrader.Hex(), Size: dec(size), Side: side}, nil).Once()
}

func TestNew(t *testing.T) {
	t.Run("read_only", func(t *testing.T) {
		f := newFixture(t, "")
		assert.True(t, f.sdk.IsReadOnly())
		_, ok := f.sdk.Address()
		assert.False(t, ok)
		assert.Equal(t, []exchange.Amm{milady}, f.sdk.SupportedAmms())
		assert.Equal(t, "testnet", f.sdk.Instance().Name)
	})

	t.Run("signer", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		addr, ok := f.sdk.Address()
		require.True(t, ok)
		assert.Equal(t, testTrader, addr)
	})

	t.Run("contracts_copy", func(t *testing.T) {
		f := newFixture(t, "")
		c := f.sdk.Contracts()
		c.Amms["milady"] = "0x0"
		assert.Equal(t, testAmm.Hex(), f.sdk.Contracts().Amms["milady"])
	})

	t.Run("unknown_instance", func(t *testing.T) {
		table, err := exchange.LoadInstancesFromReader(strings.NewReader(testInstances))
		require.NoError(t, err)
		_, err = New(context.Background(), Config{Instance: "mainnet", Instances: table},
			WithClearingHouse(&MockClearingHouse{}), WithCollateralToken(&MockToken{}), WithStatsAPI(&MockStatsAPI{}))
		require.Error(t, err)
	})

	t.Run("bad_key", func(t *testing.T) {
		table, err := exchange.LoadInstancesFromReader(strings.NewReader(testInstances))
		require.NoError(t, err)
		_, err = New(context.Background(), Config{PrivateKey: "0xnothex", Instances: table},
			WithClearingHouse(&MockClearingHouse{}), WithCollateralToken(&MockToken{}), WithStatsAPI(&MockStatsAPI{}))
		require.Error(t, err)
	})
}

func TestNewChainCheck(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		chain := &MockChain{}
		chain.On("ChainID", mock.Anything).Return(big.NewInt(421614), nil).Once()
		newFixture(t, "", WithChainReader(chain))
		chain.AssertExpectations(t)
	})

	t.Run("mismatch", func(t *testing.T) {
		table, err := exchange.LoadInstancesFromReader(strings.NewReader(testInstances))
		require.NoError(t, err)
		chain := &MockChain{}
		chain.On("ChainID", mock.Anything).Return(big.NewInt(1), nil).Once()

		_, err = New(context.Background(), Config{Instances: table},
			WithClearingHouse(&MockClearingHouse{}), WithCollateralToken(&MockToken{}),
			WithStatsAPI(&MockStatsAPI{}), WithChainReader(chain))
		var mismatch *exchange.ChainMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, int64(1), mismatch.Actual.Int64())
		assert.Equal(t, int64(421614), mismatch.Expected.Int64())
	})

	t.Run("signer_needs_chain_reader", func(t *testing.T) {
		table, err := exchange.LoadInstancesFromReader(strings.NewReader(testInstances))
		require.NoError(t, err)
		_, err = New(context.Background(), Config{PrivateKey: testPrivateKey, Instances: table},
			WithClearingHouse(&MockClearingHouse{}), WithCollateralToken(&MockToken{}), WithStatsAPI(&MockStatsAPI{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WithChainReader")

		chain := &MockChain{}
		chain.On("ChainID", mock.Anything).Return(big.NewInt(421614), nil).Once()
		_, err = New(context.Background(), Config{PrivateKey: testPrivateKey, Instances: table},
			WithClearingHouse(&MockClearingHouse{}), WithCollateralToken(&MockToken{}), WithStatsAPI(&MockStatsAPI{}),
			WithChainReader(chain))
		require.NoError(t, err)
		chain.AssertExpectations(t)
	})
}

func TestCreateMarketOrderBaseLimit(t *testing.T) {
	tests := []struct {
		name      string
		side      exchange.Side
		slippage  string
		wantLimit string
	}{
		{name: "buy_rounds_down", side: exchange.SideBuy, slippage: "5", wantLimit: "95"},
		{name: "sell_rounds_up", side: exchange.SideSell, slippage: "5", wantLimit: "105"},
		{name: "no_slippage_is_unbounded", side: exchange.SideBuy, slippage: "0", wantLimit: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testPrivateKey)
			f.api.On("OpenSummary", mock.Anything, milady, tt.side, decEq("10"), decEq("2")).
				Return(statsapi.OpenSummaryResponse{OutputSize: dec("100"), TotalCost: dec("10.5")}, nil).Once()
			f.fundTrader("50", "1000")
			tx := newMockTx("0x01")
			f.ch.On("OpenPosition", mock.Anything, testAmm, tt.side, wire("10"), wire("2"), wire(tt.wantLimit)).
				Return(tx, nil).Once()

			got, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
				Amm:             "MILADY",
				Side:            tt.side,
				Margin:          dec("10"),
				Leverage:        dec("2"),
				SlippagePercent: dec(tt.slippage),
			})
			require.NoError(t, err)
			assert.Equal(t, tx.Hash(), got.Hash())
			f.token.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestMutationsFailBeforeIO(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(s *SDK, amm exchange.Amm) error{
		"open": func(s *SDK, amm exchange.Amm) error {
			_, err := s.CreateMarketOrder(ctx, MarketOrderParams{Amm: amm, Side: exchange.SideBuy, Margin: dec("1"), Leverage: dec("1")})
			return err
		},
		"close": func(s *SDK, amm exchange.Amm) error {
			_, err := s.ClosePosition(ctx, ClosePositionParams{Amm: amm})
			return err
		},
		"add_margin": func(s *SDK, amm exchange.Amm) error {
			_, err := s.AddMargin(ctx, amm, dec("1"), GuardOptions{})
			return err
		},
		"remove_margin": func(s *SDK, amm exchange.Amm) error {
			_, err := s.RemoveMargin(ctx, amm, dec("1"))
			return err
		},
		"limit_order": func(s *SDK, amm exchange.Amm) error {
			_, err := s.CreateLimitOrder(ctx, LimitOrderParams{Amm: amm, LimitOrderSpec: LimitOrderSpec{
				Side: exchange.SideBuy, Price: dec("1"), Margin: dec("1"), Leverage: dec("1"),
			}}, GuardOptions{})
			return err
		},
		"delete_trigger": func(s *SDK, amm exchange.Amm) error {
			_, err := s.DeleteTriggerOrder(ctx, amm, 7)
			return err
		},
	}

	for name, op := range ops {
		t.Run(name+"/unsupported_market", func(t *testing.T) {
			f := newFixture(t, testPrivateKey)
			err := op(f.sdk, "azuki")
			var unsupported *exchange.UnsupportedMarketError
			require.True(t, errors.As(err, &unsupported), "got %v", err)
			f.assertExpectations(t)
		})
		t.Run(name+"/read_only", func(t *testing.T) {
			f := newFixture(t, "")
			err := op(f.sdk, milady)
			var readOnly *exchange.ReadOnlyModeError
			require.True(t, errors.As(err, &readOnly), "got %v", err)
			f.assertExpectations(t)
		})
	}
}

func TestCreateMarketOrderRejectsInput(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	base := MarketOrderParams{Amm: milady, Side: exchange.SideBuy, Margin: dec("1"), Leverage: dec("1")}

	cases := map[string]func(p *MarketOrderParams){
		"negative_slippage": func(p *MarketOrderParams) { p.SlippagePercent = dec("-1") },
		"slippage_100":      func(p *MarketOrderParams) { p.SlippagePercent = dec("100") },
		"slippage_150":      func(p *MarketOrderParams) { p.SlippagePercent = dec("150") },
		"zero_margin":       func(p *MarketOrderParams) { p.Margin = decimal.Zero },
		"zero_leverage":     func(p *MarketOrderParams) { p.Leverage = decimal.Zero },
		"bad_side":          func(p *MarketOrderParams) { p.Side = "hold" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := f.sdk.CreateMarketOrder(context.Background(), p)
			var invalid *exchange.InvalidArgumentError
			require.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
	f.assertExpectations(t)
}

func TestClosePositionRejectsFullSlippage(t *testing.T) {
	for _, pct := range []string{"100", "150"} {
		t.Run(pct, func(t *testing.T) {
			f := newFixture(t, testPrivateKey)
			_, err := f.sdk.ClosePosition(context.Background(), ClosePositionParams{Amm: milady, SlippagePercent: dec(pct)})
			var invalid *exchange.InvalidArgumentError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, "slippagePercent", invalid.Field)
			f.api.AssertNotCalled(t, "Position", mock.Anything, mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestCreateMarketOrderInsufficientBalance(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.api.On("OpenSummary", mock.Anything, milady, exchange.SideBuy, mock.Anything, mock.Anything).
		Return(statsapi.OpenSummaryResponse{OutputSize: dec("100"), TotalCost: dec("60")}, nil).Once()
	f.token.On("BalanceOf", mock.Anything, testTrader).Return(scaled("50"), nil).Once()

	_, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
		Amm: milady, Side: exchange.SideBuy, Margin: dec("30"), Leverage: dec("2"),
	})
	var insufficient *exchange.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Contains(t, err.Error(), "60")
	f.token.AssertNotCalled(t, "Allowance", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestCreateMarketOrderApproval(t *testing.T) {
	tests := []struct {
		name       string
		maxApprove *bool
		want       *big.Int
	}{
		{name: "max_by_default", want: contracts.MaxUint256},
		{name: "exact", maxApprove: Bool(false), want: scaled("10.5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testPrivateKey)
			f.api.On("OpenSummary", mock.Anything, milady, exchange.SideSell, mock.Anything, mock.Anything).
				Return(statsapi.OpenSummaryResponse{OutputSize: dec("3"), TotalCost: dec("10.5")}, nil).Once()
			f.fundTrader("20", "1")

			approval := &mockTx{hash: common.HexToHash("0xaa")}
			approval.On("Wait", mock.Anything).Return(nil).Once()
			f.token.On("Approve", mock.Anything, testCH, bigEq(tt.want)).Return(approval, nil).Once()
			f.ch.On("OpenPosition", mock.Anything, testAmm, exchange.SideSell, wire("10"), wire("1"), wire("0")).
				Return(newMockTx("0xbb"), nil).Once()

			_, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
				Amm: milady, Side: exchange.SideSell, Margin: dec("10"), Leverage: dec("1"),
				GuardOptions: GuardOptions{MaxApprove: tt.maxApprove},
			})
			require.NoError(t, err)
			approval.AssertExpectations(t)
			f.assertExpectations(t)
		})
	}
}

func TestCreateMarketOrderApprovalReverted(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.api.On("OpenSummary", mock.Anything, milady, exchange.SideBuy, mock.Anything, mock.Anything).
		Return(statsapi.OpenSummaryResponse{OutputSize: dec("3"), TotalCost: dec("5")}, nil).Once()
	f.fundTrader("20", "0")

	approval := &mockTx{hash: common.HexToHash("0xaa")}
	approval.On("Wait", mock.Anything).Return(&contracts.RevertedError{Hash: approval.hash}).Once()
	f.token.On("Approve", mock.Anything, testCH, mock.Anything).Return(approval, nil).Once()

	_, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
		Amm: milady, Side: exchange.SideBuy, Margin: dec("5"), Leverage: dec("1"),
	})
	var reverted *contracts.RevertedError
	require.True(t, errors.As(err, &reverted))
	f.ch.AssertNotCalled(t, "OpenPosition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestCreateMarketOrderSkipChecks(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.api.On("OpenSummary", mock.Anything, milady, exchange.SideBuy, mock.Anything, mock.Anything).
		Return(statsapi.OpenSummaryResponse{OutputSize: dec("1"), TotalCost: dec("999")}, nil).Once()
	f.ch.On("OpenPosition", mock.Anything, testAmm, exchange.SideBuy, mock.Anything, mock.Anything, wire("0")).
		Return(newMockTx("0x02"), nil).Once()

	_, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
		Amm: milady, Side: exchange.SideBuy, Margin: dec("1"), Leverage: dec("1"),
		GuardOptions: GuardOptions{SkipChecks: true},
	})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestCreateMarketOrderPropagatesRateLimit(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	limited := &statsapi.RateLimitError{Remaining: 0, RetryAfter: 30}
	f.api.On("OpenSummary", mock.Anything, milady, exchange.SideBuy, mock.Anything, mock.Anything).
		Return(statsapi.OpenSummaryResponse{}, limited).Once()

	_, err := f.sdk.CreateMarketOrder(context.Background(), MarketOrderParams{
		Amm: milady, Side: exchange.SideBuy, Margin: dec("1"), Leverage: dec("1"),
	})
	var rl *statsapi.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 30, rl.RetryAfter)
	f.assertExpectations(t)
}

func TestClosePosition(t *testing.T) {
	t.Run("flat_position_fails_before_summary", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("0", nil)

		_, err := f.sdk.ClosePosition(context.Background(), ClosePositionParams{Amm: milady, SlippagePercent: dec("1")})
		var noPos *exchange.NoPositionError
		require.True(t, errors.As(err, &noPos))
		f.api.AssertNotCalled(t, "CloseMarketSummary", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("partial_short_derives_side_from_size", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("-2", nil)
		f.api.On("CloseMarketSummary", mock.Anything, milady, testTrader.Hex(), decEq("50")).
			Return(statsapi.CloseSummaryResponse{OutputNotional: dec("10")}, nil).Once()
		f.ch.On("ClosePosition", mock.Anything, testAmm, wire("1"), wire("10.5")).
			Return(newMockTx("0x03"), nil).Once()

		_, err := f.sdk.ClosePosition(context.Background(), ClosePositionParams{
			Amm: milady, ClosePercent: dec("50"), SlippagePercent: dec("5"),
		})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("full_long_defaults_to_hundred_percent", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		buy := exchange.SideBuy
		f.openPositionOf("1.5", &buy)
		f.api.On("CloseMarketSummary", mock.Anything, milady, testTrader.Hex(), decEq("100")).
			Return(statsapi.CloseSummaryResponse{OutputNotional: dec("20")}, nil).Once()
		f.ch.On("ClosePosition", mock.Anything, testAmm, wire("1.5"), wire("19")).
			Return(newMockTx("0x04"), nil).Once()

		_, err := f.sdk.ClosePosition(context.Background(), ClosePositionParams{Amm: milady, SlippagePercent: dec("5")})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("percent_out_of_range", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		_, err := f.sdk.ClosePosition(context.Background(), ClosePositionParams{Amm: milady, ClosePercent: dec("150")})
		var invalid *exchange.InvalidArgumentError
		require.True(t, errors.As(err, &invalid))
		f.assertExpectations(t)
	})
}

func TestRemoveMargin(t *testing.T) {
	t.Run("excessive", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("1", nil)
		f.api.On("FreeCollateral", mock.Anything, milady, testTrader.Hex()).Return(dec("5"), nil).Once()

		_, err := f.sdk.RemoveMargin(context.Background(), milady, dec("10"))
		var excessive *exchange.ExcessiveMarginRemovalError
		require.True(t, errors.As(err, &excessive))
		f.ch.AssertNotCalled(t, "RemoveMargin", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("within_free_collateral", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("1", nil)
		f.api.On("FreeCollateral", mock.Anything, milady, testTrader.Hex()).Return(dec("5"), nil).Once()
		f.ch.On("RemoveMargin", mock.Anything, testAmm, wire("5")).Return(newMockTx("0x05"), nil).Once()

		_, err := f.sdk.RemoveMargin(context.Background(), milady, dec("5"))
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("no_position", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("0", nil)
		_, err := f.sdk.RemoveMargin(context.Background(), milady, dec("1"))
		var noPos *exchange.NoPositionError
		require.True(t, errors.As(err, &noPos))
		f.assertExpectations(t)
	})
}

func TestAddMargin(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.openPositionOf("-1", nil)
	f.fundTrader("10", "10")
	f.ch.On("AddMargin", mock.Anything, testAmm, wire("2.5")).Return(newMockTx("0x06"), nil).Once()

	_, err := f.sdk.AddMargin(context.Background(), milady, dec("2.5"), GuardOptions{})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestApprove(t *testing.T) {
	t.Run("requires_amount_or_max", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		_, err := f.sdk.Approve(context.Background(), ApproveParams{})
		var invalid *exchange.InvalidArgumentError
		require.True(t, errors.As(err, &invalid))
		f.assertExpectations(t)
	})

	t.Run("max", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.token.On("Approve", mock.Anything, testCH, bigEq(contracts.MaxUint256)).Return(newMockTx("0x07"), nil).Once()
		_, err := f.sdk.Approve(context.Background(), ApproveParams{Max: true})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("amount", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.token.On("Approve", mock.Anything, testCH, bigEq(scaled("12.5"))).Return(newMockTx("0x08"), nil).Once()
		_, err := f.sdk.Approve(context.Background(), ApproveParams{Amount: dec("12.5")})
		require.NoError(t, err)
		f.assertExpectations(t)
	})
}

func TestLimitOrders(t *testing.T) {
	spec := LimitOrderSpec{Side: exchange.SideSell, Price: dec("0.5"), Margin: dec("1"), Leverage: dec("3")}
	encoded := exchange.LimitOrder{
		Trader:      testTrader,
		Amm:         testAmm,
		Side:        exchange.SideSell,
		Trigger:     wire("0.5"),
		QuoteAmount: wire("1"),
		Leverage:    wire("3"),
	}

	t.Run("create_runs_collateral_checks", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.fundTrader("1", "1")
		f.ch.On("CreateLimitOrder", mock.Anything, encoded).Return(newMockTx("0x09"), nil).Once()

		_, err := f.sdk.CreateLimitOrder(context.Background(), LimitOrderParams{Amm: milady, LimitOrderSpec: spec}, GuardOptions{})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("reduce_only_skips_checks", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		reduce := spec
		reduce.ReduceOnly = true
		want := encoded
		want.ReduceOnly = true
		f.ch.On("CreateLimitOrder", mock.Anything, want).Return(newMockTx("0x0a"), nil).Once()

		_, err := f.sdk.CreateLimitOrder(context.Background(), LimitOrderParams{Amm: milady, LimitOrderSpec: reduce}, GuardOptions{})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("update_and_delete", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.ch.On("UpdateLimitOrder", mock.Anything, uint64(4), encoded).Return(newMockTx("0x0b"), nil).Once()
		f.ch.On("DeleteLimitOrder", mock.Anything, uint64(4)).Return(newMockTx("0x0c"), nil).Once()

		_, err := f.sdk.UpdateLimitOrder(context.Background(), 4, LimitOrderParams{Amm: milady, LimitOrderSpec: spec})
		require.NoError(t, err)
		_, err = f.sdk.DeleteLimitOrder(context.Background(), milady, 4)
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("batches", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.ch.On("CreateLimitOrderBatch", mock.Anything, []exchange.LimitOrder{encoded, encoded}).Return(newMockTx("0x0d"), nil).Once()
		f.ch.On("UpdateLimitOrderBatch", mock.Anything, []uint64{1, 2}, []exchange.LimitOrder{encoded, encoded}).Return(newMockTx("0x0e"), nil).Once()
		f.ch.On("DeleteLimitOrderBatch", mock.Anything, []uint64{1, 2}).Return(newMockTx("0x0f"), nil).Once()

		ctx := context.Background()
		_, err := f.sdk.CreateLimitOrderBatch(ctx, milady, []LimitOrderSpec{spec, spec})
		require.NoError(t, err)
		_, err = f.sdk.UpdateLimitOrderBatch(ctx, milady, []uint64{1, 2}, []LimitOrderSpec{spec, spec})
		require.NoError(t, err)
		_, err = f.sdk.DeleteLimitOrderBatch(ctx, milady, []uint64{1, 2})
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("batch_validation", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		ctx := context.Background()
		var invalid *exchange.InvalidArgumentError

		_, err := f.sdk.CreateLimitOrderBatch(ctx, milady, nil)
		require.True(t, errors.As(err, &invalid))
		_, err = f.sdk.UpdateLimitOrderBatch(ctx, milady, []uint64{1}, []LimitOrderSpec{spec, spec})
		require.True(t, errors.As(err, &invalid))

		bad := spec
		bad.Price = decimal.Zero
		_, err = f.sdk.CreateLimitOrderBatch(ctx, milady, []LimitOrderSpec{spec, bad})
		require.True(t, errors.As(err, &invalid))
		assert.Contains(t, err.Error(), "order 1")
		f.assertExpectations(t)
	})
}

func TestCreateTriggerOrder(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.ch.On("CreateTriggerOrder", mock.Anything, exchange.TriggerOrder{
		Trader:     testTrader,
		Amm:        testAmm,
		Trigger:    wire("1.2"),
		Size:       wire("3"),
		QuoteLimit: fixedpoint.WireDecimal{D: "0"},
		TakeProfit: true,
	}).Return(newMockTx("0x10"), nil).Once()

	_, err := f.sdk.CreateTriggerOrder(context.Background(), TriggerOrderParams{
		Amm: milady, Price: dec("1.2"), Size: dec("3"), Type: exchange.TriggerTakeProfit,
	})
	require.NoError(t, err)

	_, err = f.sdk.CreateTriggerOrder(context.Background(), TriggerOrderParams{
		Amm: milady, Price: dec("1.2"), Size: dec("3"), Type: "trailing",
	})
	var invalid *exchange.InvalidArgumentError
	require.True(t, errors.As(err, &invalid))
	f.assertExpectations(t)
}

func TestReadsRequireTraderWhenReadOnly(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.sdk.GetPosition(ctx, milady, "")
	assert.ErrorIs(t, err, exchange.ErrTraderRequired)
	_, err = f.sdk.GetBalances(ctx, "")
	assert.ErrorIs(t, err, exchange.ErrTraderRequired)
	_, err = f.sdk.GetUpnl(ctx, milady, "")
	assert.ErrorIs(t, err, exchange.ErrTraderRequired)

	other := "0x00000000000000000000000000000000000000b0"
	f.api.On("Position", mock.Anything, milady, common.HexToAddress(other).Hex()).
		Return(statsapi.PositionResponse{Size: dec("1")}, nil).Once()
	pos, err := f.sdk.GetPosition(ctx, "Milady", other)
	require.NoError(t, err)
	assert.False(t, pos.IsFlat())

	_, err = f.sdk.GetPosition(ctx, milady, "not-an-address")
	var invalid *exchange.InvalidArgumentError
	require.True(t, errors.As(err, &invalid))
	f.assertExpectations(t)
}

func TestPositionDerivedReads(t *testing.T) {
	t.Run("flat_position", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("0", nil)
		_, err := f.sdk.GetLiquidationPrice(context.Background(), milady, "")
		var noPos *exchange.NoPositionError
		require.True(t, errors.As(err, &noPos))
		f.assertExpectations(t)
	})

	t.Run("present", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		upnl := dec("-0.25")
		f.api.On("Position", mock.Anything, milady, testTrader.Hex()).
			Return(statsapi.PositionResponse{Size: dec("2"), UnrealizedPnl: &upnl}, nil).Once()
		got, err := f.sdk.GetUpnl(context.Background(), milady, "")
		require.NoError(t, err)
		assert.True(t, got.Equal(upnl))
		f.assertExpectations(t)
	})

	t.Run("missing_field", func(t *testing.T) {
		f := newFixture(t, testPrivateKey)
		f.openPositionOf("2", nil)
		_, err := f.sdk.GetFundingPayment(context.Background(), milady, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fundingPayment")
		f.assertExpectations(t)
	})
}

func TestGetMaxLeverage(t *testing.T) {
	f := newFixture(t, "")
	f.api.On("AmmInfo", mock.Anything, milady).Return(statsapi.AmmInfoResponse{InitMarginRatio: dec("0.2")}, nil).Once()
	f.api.On("AmmInfo", mock.Anything, milady).Return(statsapi.AmmInfoResponse{}, nil).Once()

	got, err := f.sdk.GetMaxLeverage(context.Background(), milady)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("5")), got.String())

	_, err = f.sdk.GetMaxLeverage(context.Background(), milady)
	require.Error(t, err)
	f.assertExpectations(t)
}

func TestHistoryChecksMarketOnlyWhenGiven(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.api.On("MarketTrades", mock.Anything, statsapi.TradeParams{PageSize: 10}).
		Return(statsapi.Page[statsapi.MarketTrade]{PageSize: 10}, nil).Once()
	f.api.On("Fundings", mock.Anything, statsapi.FundingParams{Amm: milady}).
		Return(statsapi.Page[statsapi.FundingPaymentEvent]{}, nil).Once()

	_, err := f.sdk.GetTrades(ctx, statsapi.TradeParams{PageSize: 10})
	require.NoError(t, err)
	_, err = f.sdk.GetFundings(ctx, statsapi.FundingParams{Amm: "MILADY"})
	require.NoError(t, err)

	_, err = f.sdk.GetTrades(ctx, statsapi.TradeParams{Amm: "azuki"})
	var unsupported *exchange.UnsupportedMarketError
	require.True(t, errors.As(err, &unsupported))
	f.assertExpectations(t)
}

func TestCollateralReads(t *testing.T) {
	f := newFixture(t, testPrivateKey)
	f.fundTrader("7.5", "2")

	balance, err := f.sdk.GetCollateralBalance(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("7.5")))

	allowance, err := f.sdk.GetAllowance(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, allowance.Equal(dec("2")))
	f.assertExpectations(t)
}

func TestSubscribeWithoutEndpoint(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.sdk.Subscribe(context.Background(), stream.EventTrade, milady)
	require.Error(t, err)

	_, err = f.sdk.Subscribe(context.Background(), stream.EventTrade, "azuki")
	var unsupported *exchange.UnsupportedMarketError
	require.True(t, errors.As(err, &unsupported))
}
