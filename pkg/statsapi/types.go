package statsapi

import (
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
)

// Response payloads of the statistics API. Every endpoint wraps its payload
// as {"data": ...}. Numeric fields arrive as decimal strings (or plain JSON
// numbers for the order book) and are decoded without float conversion.

// PositionResponse is a trader's position on one amm. Only Amm, Trader and
// Size are guaranteed; the rest are absent while the position is flat.
type PositionResponse struct {
	Amm                 exchange.Amm     `json:"amm"`
	Trader              string           `json:"trader"`
	Size                decimal.Decimal  `json:"size"`
	Side                *exchange.Side   `json:"side,omitempty"`
	Notional            *decimal.Decimal `json:"notional,omitempty"`
	Margin              *decimal.Decimal `json:"margin,omitempty"`
	Leverage            *decimal.Decimal `json:"leverage,omitempty"`
	EntryPrice          *decimal.Decimal `json:"entryPrice,omitempty"`
	MarkPrice           *decimal.Decimal `json:"markPrice,omitempty"`
	LiquidationPrice    *decimal.Decimal `json:"liquidationPrice,omitempty"`
	UnrealizedPnl       *decimal.Decimal `json:"unrealizedPnl,omitempty"`
	FundingPayment      *decimal.Decimal `json:"fundingPayment,omitempty"`
	LastPremiumFraction *decimal.Decimal `json:"lastPremiumFraction,omitempty"`
}

// IsFlat reports whether the position has zero size.
func (p *PositionResponse) IsFlat() bool {
	return p == nil || p.Size.IsZero()
}

// MakerPositionResponse describes liquidity provided by a maker.
type MakerPositionResponse struct {
	Amm            string           `json:"amm"`
	Trader         string           `json:"trader"`
	TotalLiquidity decimal.Decimal  `json:"totalLiquidity"`
	UserLiquidity  decimal.Decimal  `json:"userLiquidity"`
	Return30d      decimal.Decimal  `json:"return30d"`
	Pools          []MakerPool      `json:"pools,omitempty"`
	Margin         *decimal.Decimal `json:"margin,omitempty"`
	Position       *decimal.Decimal `json:"position,omitempty"`
	Fees           *decimal.Decimal `json:"fees,omitempty"`
	FundingPayment *decimal.Decimal `json:"fundingPayment,omitempty"`
}

// MakerPool is a maker's share of a liquidity pool.
type MakerPool struct {
	Index  int             `json:"index"`
	Shares decimal.Decimal `json:"shares"`
}

// AmmInfoResponse aggregates market parameters and 24h statistics.
type AmmInfoResponse struct {
	MarkPrice              decimal.Decimal `json:"markPrice"`
	IndexPrice             decimal.Decimal `json:"indexPrice"`
	FundingRate            decimal.Decimal `json:"fundingRate"`
	FeeRatio               decimal.Decimal `json:"feeRatio"`
	InitMarginRatio        decimal.Decimal `json:"initMarginRatio"`
	MaintenanceMarginRatio decimal.Decimal `json:"maintenanceMarginRatio"`
	NetPositionSize        decimal.Decimal `json:"netPositionSize"`
	PositionSizeLong       decimal.Decimal `json:"positionSizeLong"`
	PositionSizeShort      decimal.Decimal `json:"positionSizeShort"`
	OpenInterestNotional   decimal.Decimal `json:"openInterestNotional"`
	Volume24h              decimal.Decimal `json:"volume24h"`
	MarkPrice24h           decimal.Decimal `json:"markPrice24h"`
	IndexPrice24h          decimal.Decimal `json:"indexPrice24h"`
}

// OpenSummaryResponse quotes a market open.
type OpenSummaryResponse struct {
	OutputSize       decimal.Decimal `json:"outputSize"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	PriceImpact      decimal.Decimal `json:"priceImpact"`
	Fee              decimal.Decimal `json:"fee"`
	FeeRatio         decimal.Decimal `json:"feeRatio"`
	TotalCost        decimal.Decimal `json:"totalCost"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	SurgeFee         bool            `json:"surgeFee"`
	LoweredFee       bool            `json:"loweredFee"`
}

// CloseSummaryResponse quotes a (partial) close.
type CloseSummaryResponse struct {
	OutputMargin   decimal.Decimal `json:"outputMargin"`
	OutputNotional decimal.Decimal `json:"outputNotional"`
	ExitPrice      decimal.Decimal `json:"exitPrice"`
	PriceImpact    decimal.Decimal `json:"priceImpact"`
	UnrealizedPnl  decimal.Decimal `json:"unrealizedPnl"`
	Fee            decimal.Decimal `json:"fee"`
}

// MarginChangeSummaryResponse quotes the effect of adding or removing margin.
type MarginChangeSummaryResponse struct {
	NewMargin        decimal.Decimal `json:"newMargin"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
}

// BalancesResponse holds native and collateral balances of a trader.
type BalancesResponse struct {
	Eth  decimal.Decimal `json:"eth"`
	Weth decimal.Decimal `json:"weth"`
}

// TxInfo locates an indexed event.
type TxInfo struct {
	TransactionHash  string `json:"transactionHash"`
	BlockNumber      int64  `json:"blockNumber"`
	TransactionIndex int    `json:"transactionIndex"`
	LogIndex         int    `json:"logIndex"`
	Timestamp        int64  `json:"timestamp"`
}

// MarketTrade is one executed trade.
type MarketTrade struct {
	TxInfo
	Amm            string          `json:"amm"`
	AmmName        string          `json:"ammName"`
	Trader         string          `json:"trader"`
	Margin         decimal.Decimal `json:"margin"`
	Size           decimal.Decimal `json:"size"`
	OpenNotional   decimal.Decimal `json:"openNotional"`
	ExchangedQuote decimal.Decimal `json:"exchangedQuote"`
	ExchangedBase  decimal.Decimal `json:"exchangedBase"`
	RealizedPnl    decimal.Decimal `json:"realizedPnl"`
	FundingPayment decimal.Decimal `json:"fundingPayment"`
	MarkPrice      decimal.Decimal `json:"markPrice"`
	TradeType      int             `json:"tradeType"`
	IfFee          decimal.Decimal `json:"ifFee"`
	AmmFee         decimal.Decimal `json:"ammFee"`
	LimitFee       decimal.Decimal `json:"limitFee"`
	KeeperFee      decimal.Decimal `json:"keeperFee"`
	LiquidatorFee  decimal.Decimal `json:"liquidatorFee"`
}

// FundingPaymentEvent is one funding settlement.
type FundingPaymentEvent struct {
	TxInfo
	Amm             string          `json:"amm"`
	AmmName         string          `json:"ammName"`
	MarkPrice       decimal.Decimal `json:"markPrice"`
	IndexPrice      decimal.Decimal `json:"indexPrice"`
	PremiumFraction decimal.Decimal `json:"premiumFraction"`
	FundingRate     decimal.Decimal `json:"fundingRate"`
}

// Page is one page of a paginated history endpoint.
type Page[T any] struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Result   []T `json:"result"`
}

// Sort orders history results by timestamp.
type Sort string

const (
	SortAsc  Sort = "1"
	SortDesc Sort = "-1"
)

// TradeParams filters MarketTrades. Zero fields are omitted.
type TradeParams struct {
	Amm      exchange.Amm
	Trader   string
	From     int64 // unix seconds, inclusive
	To       int64 // unix seconds, inclusive
	Sort     Sort
	Page     int
	PageSize int
	Hash     string
}

// FundingParams filters Fundings. Zero fields are omitted.
type FundingParams struct {
	Amm      exchange.Amm
	Hash     string
	From     int64
	To       int64
	Sort     Sort
	Page     int
	PageSize int
}

// Order is a resting limit or trigger order.
type Order struct {
	ID        string          `json:"id"`
	Amm       exchange.Amm    `json:"amm"`
	Trader    string          `json:"trader"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Side      int             `json:"side"`
	Timestamp int64           `json:"timestamp"`
}

// Level is one aggregated order book level.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Side  int             `json:"side"`
}

// OrderBook is the aggregated limit order book of an amm.
type OrderBook struct {
	Amm       exchange.Amm    `json:"amm"`
	Asks      int             `json:"asks"`
	Bids      int             `json:"bids"`
	Levels    []Level         `json:"levels"`
	MarkPrice decimal.Decimal `json:"markPrice"`
}
