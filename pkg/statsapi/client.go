package statsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "perp-sdk"
	requestIDHeader    = "X-Request-Id"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client reads market data, quotes and history from the statistics API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	newID      func() string
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRequestIDs overrides the request id generator (primarily for testing).
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// NewClient builds a client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("statsapi: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("statsapi: parse base url: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		userAgent:  defaultUserAgent,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func get[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	var zero T
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, fmt.Errorf("statsapi: build request: %w", err)
	}
	reqID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("statsapi: read %s response: %w", path, err)
	}
	logx.WithContext(ctx).Debugf("statsapi: GET %s status=%d request_id=%s duration=%s", path, resp.StatusCode, reqID, time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		return zero, rateLimitFromHeaders(resp.Header)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		return zero, statusError(resp.StatusCode, body)
	}

	var out envelope[T]
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, fmt.Errorf("statsapi: decode %s response: %w", path, err)
	}
	return out.Data, nil
}

func statusError(code int, body []byte) error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Data.Message != "" {
			return &APIError{StatusCode: code, Message: parsed.Data.Message}
		}
		if parsed.Message != "" {
			return &APIError{StatusCode: code, Message: parsed.Message}
		}
	}
	return &APIError{StatusCode: code, Message: fmt.Sprintf("request failed with status code %d", code)}
}

func ammTrader(amm exchange.Amm, trader string) url.Values {
	v := url.Values{}
	v.Set("amm", amm.Canonical().String())
	if trader != "" {
		v.Set("trader", trader)
	}
	return v
}

// MarkPrice returns the mark price of amm.
func (c *Client) MarkPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	return get[decimal.Decimal](ctx, c, "/markPrice", ammTrader(amm, ""))
}

// IndexPrice returns the oracle index price of amm.
func (c *Client) IndexPrice(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	return get[decimal.Decimal](ctx, c, "/indexPrice", ammTrader(amm, ""))
}

// FundingRate returns the predicted funding rate of amm.
func (c *Client) FundingRate(ctx context.Context, amm exchange.Amm) (decimal.Decimal, error) {
	return get[decimal.Decimal](ctx, c, "/fundingRate", ammTrader(amm, ""))
}

// AmmInfo returns market parameters and statistics of amm.
func (c *Client) AmmInfo(ctx context.Context, amm exchange.Amm) (AmmInfoResponse, error) {
	return get[AmmInfoResponse](ctx, c, "/info", ammTrader(amm, ""))
}

// Position returns trader's position on amm.
func (c *Client) Position(ctx context.Context, amm exchange.Amm, trader string) (PositionResponse, error) {
	return get[PositionResponse](ctx, c, "/position", ammTrader(amm, trader))
}

// MakerPosition returns trader's maker position on amm.
func (c *Client) MakerPosition(ctx context.Context, amm exchange.Amm, trader string) (MakerPositionResponse, error) {
	return get[MakerPositionResponse](ctx, c, "/position/maker", ammTrader(amm, trader))
}

// OpenSummary quotes opening a market position.
func (c *Client) OpenSummary(ctx context.Context, amm exchange.Amm, side exchange.Side, margin, leverage decimal.Decimal) (OpenSummaryResponse, error) {
	v := ammTrader(amm, "")
	v.Set("side", string(side))
	v.Set("margin", fixedpoint.Format(margin))
	v.Set("leverage", fixedpoint.Format(leverage))
	return get[OpenSummaryResponse](ctx, c, "/openSummary", v)
}

// CloseMarketSummary quotes closing closePercent of trader's position at market.
func (c *Client) CloseMarketSummary(ctx context.Context, amm exchange.Amm, trader string, closePercent decimal.Decimal) (CloseSummaryResponse, error) {
	v := ammTrader(amm, trader)
	v.Set("closePercent", fixedpoint.Format(closePercent))
	return get[CloseSummaryResponse](ctx, c, "/closeMarketSummary", v)
}

// CloseLimitSummary quotes closing closePercent of trader's position at the
// trigger price.
func (c *Client) CloseLimitSummary(ctx context.Context, amm exchange.Amm, trader string, trigger, closePercent decimal.Decimal) (CloseSummaryResponse, error) {
	v := ammTrader(amm, trader)
	v.Set("trigger", fixedpoint.Format(trigger))
	v.Set("closePercent", fixedpoint.Format(closePercent))
	return get[CloseSummaryResponse](ctx, c, "/closeLimitSummary", v)
}

// FreeCollateral returns the margin trader may withdraw from amm.
func (c *Client) FreeCollateral(ctx context.Context, amm exchange.Amm, trader string) (decimal.Decimal, error) {
	return get[decimal.Decimal](ctx, c, "/freeCollateral", ammTrader(amm, trader))
}

// MarginChangeSummary quotes adding (positive) or removing (negative) margin.
func (c *Client) MarginChangeSummary(ctx context.Context, amm exchange.Amm, trader string, margin decimal.Decimal) (MarginChangeSummaryResponse, error) {
	v := ammTrader(amm, trader)
	v.Set("margin", fixedpoint.Format(margin))
	return get[MarginChangeSummaryResponse](ctx, c, "/marginChangeSummary", v)
}

// Balances returns native and collateral balances of trader.
func (c *Client) Balances(ctx context.Context, trader string) (BalancesResponse, error) {
	v := url.Values{}
	v.Set("trader", trader)
	return get[BalancesResponse](ctx, c, "/balances", v)
}

// EthPrice returns the USD price of ETH.
func (c *Client) EthPrice(ctx context.Context) (decimal.Decimal, error) {
	return get[decimal.Decimal](ctx, c, "/ethPrice", nil)
}

// MarketTrades returns a page of executed trades.
func (c *Client) MarketTrades(ctx context.Context, p TradeParams) (Page[MarketTrade], error) {
	v := url.Values{}
	if p.Amm != "" {
		v.Set("amm", p.Amm.Canonical().String())
	}
	setString(v, "trader", p.Trader)
	setString(v, "hash", p.Hash)
	setPaging(v, p.From, p.To, p.Sort, p.Page, p.PageSize)
	return get[Page[MarketTrade]](ctx, c, "/marketTrades", v)
}

// Fundings returns a page of funding settlements.
func (c *Client) Fundings(ctx context.Context, p FundingParams) (Page[FundingPaymentEvent], error) {
	v := url.Values{}
	if p.Amm != "" {
		v.Set("amm", p.Amm.Canonical().String())
	}
	setString(v, "hash", p.Hash)
	setPaging(v, p.From, p.To, p.Sort, p.Page, p.PageSize)
	return get[Page[FundingPaymentEvent]](ctx, c, "/fundings", v)
}

// Orders returns the resting limit orders of trader on amm.
func (c *Client) Orders(ctx context.Context, amm exchange.Amm, trader string) ([]Order, error) {
	return get[[]Order](ctx, c, "/orders", ammTrader(amm, trader))
}

// TriggerOrders returns the resting trigger orders of trader on amm.
func (c *Client) TriggerOrders(ctx context.Context, amm exchange.Amm, trader string) ([]Order, error) {
	return get[[]Order](ctx, c, "/orders/trigger", ammTrader(amm, trader))
}

// OrderBook returns the aggregated limit order book of amm.
func (c *Client) OrderBook(ctx context.Context, amm exchange.Amm) (OrderBook, error) {
	return get[OrderBook](ctx, c, "/orderbook", ammTrader(amm, ""))
}

func setString(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setPaging(v url.Values, from, to int64, sort Sort, page, pageSize int) {
	if from > 0 {
		v.Set("from", strconv.FormatInt(from, 10))
	}
	if to > 0 {
		v.Set("to", strconv.FormatInt(to, 10))
	}
	setString(v, "sort", string(sort))
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		v.Set("pageSize", strconv.Itoa(pageSize))
	}
}
