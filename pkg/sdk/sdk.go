// Package sdk is the trading facade: it resolves markets against the active
// instance, runs the pre-flight guards and forwards slippage-bounded calls to
// the clearing house.
//
// An SDK holds no mutable state after construction and is safe for
// concurrent use.
package sdk

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/exchange/contracts"
	"perp-sdk/pkg/statsapi"
	"perp-sdk/pkg/stream"
)

// StatsAPI is the off-chain statistics collaborator. *statsapi.Client
// implements it.
type StatsAPI interface {
	MarkPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error)
	IndexPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error)
	FundingRate(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error)
	AmmInfo(ctx context.Context, amm exchange.Amm) (statsapi.AmmInfoResponse, error)
	Position(ctx context.Context, amm exchange.Amm, trader string) (statsapi.PositionResponse, error)
	MakerPosition(ctx context.Context, amm exchange.Amm, trader string) (statsapi.MakerPositionResponse, error)
	OpenSummary(ctx context.Context, amm exchange.Amm, side exchange.Side, margin, leverage decimal.Decimal) (statsapi.OpenSummaryResponse, error)
	CloseMarketSummary(ctx context.Context, amm exchange.Amm, trader string, closePercent decimal.Decimal) (statsapi.CloseSummaryResponse, error)
	CloseLimitSummary(ctx context.Context, amm exchange.Amm, trader string, trigger, closePercent decimal.Decimal) (statsapi.CloseSummaryResponse, error)
	FreeCollateral(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error)
	MarginChangeSummary(ctx context.Context, amm exchange.Amm, trader string, margin decimal.Decimal) (statsapi.MarginChangeSummaryResponse, error)
	Balances(ctx context.Context, trader string) (statsapi.BalancesResponse, error)
	EthPrice(ctx context.Context) (decimal.Decimal, error)
	MarketTrades(ctx context.Context, p statsapi.TradeParams) (statsapi.Page[statsapi.MarketTrade], error)
	Fundings(ctx context.Context, p statsapi.FundingParams) (statsapi.Page[statsapi.FundingPaymentEvent], error)
	Orders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error)
	TriggerOrders(ctx context.Context, amm exchange.Amm, trader string) ([]statsapi.Order, error)
	OrderBook(ctx context.Context, amm exchange.Amm) (statsapi.OrderBook, error)
}

// ChainReader reports the chain id of the connected RPC endpoint.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ StatsAPI = (*statsapi.Client)(nil)

// Config selects the deployment and signing key.
type Config struct {
	// Instance names the deployment; empty selects the table default.
	Instance string
	// PrivateKey is the hex signing key. Empty builds a read-only SDK.
	PrivateKey string
	// RPCURL overrides the instance RPC endpoint.
	RPCURL string
	// APIBaseURL overrides the instance statistics API.
	APIBaseURL string
	// Instances replaces the built-in instance table.
	Instances *exchange.InstanceTable
}

type options struct {
	clearingHouse exchange.ClearingHouse
	token         exchange.CollateralToken
	api           StatsAPI
	chain         ChainReader
	noChainCheck  bool
	stream        *stream.Client
	httpClient    *http.Client
}

// Option customises SDK construction.
type Option func(*options)

// WithClearingHouse injects the clearing-house collaborator.
func WithClearingHouse(ch exchange.ClearingHouse) Option {
	return func(o *options) { o.clearingHouse = ch }
}

// WithCollateralToken injects the collateral token collaborator.
func WithCollateralToken(token exchange.CollateralToken) Option {
	return func(o *options) { o.token = token }
}

// WithStatsAPI injects the statistics API collaborator.
func WithStatsAPI(api StatsAPI) Option {
	return func(o *options) { o.api = api }
}

// WithChainReader injects the chain id source used for the construction
// check. A signing SDK whose clearing house and token are both injected needs
// either a chain reader or WithoutChainCheck.
func WithChainReader(r ChainReader) Option {
	return func(o *options) { o.chain = r }
}

// WithoutChainCheck skips the chain id check for injected collaborators that
// have no chain, such as the sim exchange.
func WithoutChainCheck() Option {
	return func(o *options) { o.noChainCheck = true }
}

// WithStreamClient injects the websocket client.
func WithStreamClient(c *stream.Client) Option {
	return func(o *options) { o.stream = c }
}

// WithHTTPClient sets the HTTP client of the default statistics API client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// SDK is the trading facade bound to one instance.
type SDK struct {
	instance *exchange.Instance
	markets  map[exchange.Amm]common.Address

	signer *contracts.Signer
	ch     exchange.ClearingHouse
	token  exchange.CollateralToken
	api    StatsAPI
	stream *stream.Client
	rpc    *ethclient.Client
}

// New resolves cfg.Instance, connects collaborators that were not injected
// and validates the RPC chain id against the instance.
func New(ctx context.Context, cfg Config, opts ...Option) (*SDK, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	table := cfg.Instances
	if table == nil {
		var err error
		if table, err = exchange.DefaultInstances(); err != nil {
			return nil, err
		}
	}
	inst, err := table.Lookup(cfg.Instance)
	if err != nil {
		return nil, err
	}

	s := &SDK{
		instance: inst,
		markets:  make(map[exchange.Amm]common.Address, len(inst.Contracts.Amms)),
		api:      o.api,
		stream:   o.stream,
		ch:       o.clearingHouse,
		token:    o.token,
	}
	for _, amm := range inst.Markets() {
		addr, err := inst.MarketAddress(amm)
		if err != nil {
			return nil, err
		}
		s.markets[amm] = addr
	}

	if key := strings.TrimSpace(cfg.PrivateKey); key != "" {
		if s.signer, err = contracts.NewSigner(key, inst.ChainIDBig()); err != nil {
			return nil, fmt.Errorf("sdk: %w", err)
		}
	}

	if s.api == nil {
		baseURL := firstNonEmpty(cfg.APIBaseURL, inst.APIBaseURL)
		apiOpts := []statsapi.Option{statsapi.WithTimeout(inst.Timeout)}
		if o.httpClient != nil {
			apiOpts = append(apiOpts, statsapi.WithHTTPClient(o.httpClient))
		}
		if s.api, err = statsapi.NewClient(baseURL, apiOpts...); err != nil {
			return nil, err
		}
	}
	if s.stream == nil && inst.APIWsURL != "" {
		if s.stream, err = stream.NewClient(inst.APIWsURL); err != nil {
			return nil, err
		}
	}

	chain := o.chain
	if s.ch == nil || s.token == nil {
		rpcURL := firstNonEmpty(cfg.RPCURL, inst.RPCURL)
		if s.rpc, err = contracts.Dial(ctx, rpcURL); err != nil {
			return nil, err
		}
		if chain == nil {
			chain = s.rpc
		}
		if err := s.bindContracts(); err != nil {
			s.Close()
			return nil, err
		}
	}

	if o.noChainCheck {
		chain = nil
	} else if chain == nil && s.signer != nil {
		s.Close()
		return nil, fmt.Errorf("sdk: signing with injected collaborators on %s requires WithChainReader or WithoutChainCheck", inst.Name)
	}
	if chain != nil {
		actual, err := chain.ChainID(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("sdk: read chain id: %w", err)
		}
		if actual.Cmp(inst.ChainIDBig()) != 0 {
			s.Close()
			return nil, &exchange.ChainMismatchError{Instance: inst.Name, Expected: inst.ChainIDBig(), Actual: actual}
		}
	}

	logx.WithContext(ctx).Infof("sdk: initialised instance=%s chain_id=%d read_only=%t markets=%d",
		inst.Name, inst.ChainID, s.IsReadOnly(), len(s.markets))
	return s, nil
}

func (s *SDK) bindContracts() error {
	if s.ch == nil {
		ch, err := contracts.NewClearingHouse(s.instance.ClearingHouseAddress(), s.rpc, s.signer)
		if err != nil {
			return err
		}
		s.ch = ch
	}
	if s.token == nil {
		token, err := contracts.NewERC20(s.instance.CollateralAddress(), s.rpc, s.signer)
		if err != nil {
			return err
		}
		s.token = token
	}
	return nil
}

// Close releases the RPC connection dialed by New.
func (s *SDK) Close() {
	if s.rpc != nil {
		s.rpc.Close()
	}
}

// IsReadOnly reports whether the SDK was built without a signing key.
func (s *SDK) IsReadOnly() bool { return s.signer == nil }

// Address returns the signing account; false in read-only mode.
func (s *SDK) Address() (common.Address, bool) {
	if s.signer == nil {
		return common.Address{}, false
	}
	return s.signer.Address(), true
}

// Instance returns the active deployment.
func (s *SDK) Instance() *exchange.Instance { return s.instance }

// SupportedAmms lists the markets of the active instance.
func (s *SDK) SupportedAmms() []exchange.Amm { return s.instance.Markets() }

// Contracts returns a copy of the deployed contract addresses of the active
// instance.
func (s *SDK) Contracts() exchange.Contracts {
	out := s.instance.Contracts
	out.Amms = make(map[string]string, len(s.instance.Contracts.Amms))
	for k, v := range s.instance.Contracts.Amms {
		out.Amms[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
