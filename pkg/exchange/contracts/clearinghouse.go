package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

const positionChangedEvent = "PositionChanged"

// ClearingHouse binds the clearing-house contract. Without a signer only
// GetPosition and WatchPositionChanged are usable.
type ClearingHouse struct {
	*boundContract
}

var _ exchange.ClearingHouse = (*ClearingHouse)(nil)

// NewClearingHouse binds the clearing house at address.
func NewClearingHouse(address common.Address, backend Backend, signer *Signer) (*ClearingHouse, error) {
	parsed, _, err := parsedABIs()
	if err != nil {
		return nil, err
	}
	return &ClearingHouse{boundContract: newBound("ClearingHouse", address, parsed, backend, signer)}, nil
}

// Address returns the contract address.
func (c *ClearingHouse) Address() common.Address { return c.address }

type limitOrderTuple struct {
	Trader      common.Address
	Amm         common.Address
	Side        uint8
	Trigger     *big.Int
	QuoteAmount *big.Int
	Leverage    *big.Int
	ReduceOnly  bool
}

type triggerOrderTuple struct {
	Trader     common.Address
	Amm        common.Address
	Trigger    *big.Int
	Size       *big.Int
	QuoteLimit *big.Int
	TakeProfit bool
}

type positionTuple struct {
	Size                                 *big.Int
	Margin                               *big.Int
	OpenNotional                         *big.Int
	LastUpdatedCumulativePremiumFraction *big.Int
	BlockNumber                          *big.Int
}

func uint256(field string, w fixedpoint.WireDecimal) (*big.Int, error) {
	v, err := w.Int()
	if err != nil {
		return nil, &exchange.InvalidArgumentError{Field: field, Reason: err.Error()}
	}
	if v.Sign() < 0 {
		return nil, &exchange.InvalidArgumentError{Field: field, Reason: fmt.Sprintf("must not be negative, got %s", v)}
	}
	return v, nil
}

func uint256s(fields []string, values ...fixedpoint.WireDecimal) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, w := range values {
		v, err := uint256(fields[i], w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func ids256(ids []uint64) []*big.Int {
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).SetUint64(id)
	}
	return out
}

func toLimitTuple(o exchange.LimitOrder) (limitOrderTuple, error) {
	if !o.Side.Valid() {
		return limitOrderTuple{}, &exchange.InvalidArgumentError{Field: "side", Reason: fmt.Sprintf("unknown side %q", o.Side)}
	}
	vals, err := uint256s([]string{"trigger", "quoteAmount", "leverage"}, o.Trigger, o.QuoteAmount, o.Leverage)
	if err != nil {
		return limitOrderTuple{}, err
	}
	return limitOrderTuple{
		Trader:      o.Trader,
		Amm:         o.Amm,
		Side:        o.Side.Uint8(),
		Trigger:     vals[0],
		QuoteAmount: vals[1],
		Leverage:    vals[2],
		ReduceOnly:  o.ReduceOnly,
	}, nil
}

func toLimitTuples(orders []exchange.LimitOrder) ([]limitOrderTuple, error) {
	out := make([]limitOrderTuple, len(orders))
	for i, o := range orders {
		t, err := toLimitTuple(o)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// OpenPosition opens or extends a position at market.
func (c *ClearingHouse) OpenPosition(ctx context.Context, amm common.Address, side exchange.Side, margin, leverage, baseLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	if !side.Valid() {
		return nil, &exchange.InvalidArgumentError{Field: "side", Reason: fmt.Sprintf("unknown side %q", side)}
	}
	vals, err := uint256s([]string{"margin", "leverage", "baseLimit"}, margin, leverage, baseLimit)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "openPosition", amm, side.Uint8(), vals[0], vals[1], vals[2])
}

// ClosePosition reduces the position on amm by size base units.
func (c *ClearingHouse) ClosePosition(ctx context.Context, amm common.Address, size, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	vals, err := uint256s([]string{"size", "quoteLimit"}, size, quoteLimit)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "closePosition", amm, vals[0], vals[1])
}

// PartialClose closes ratio (scaled, 1e18 = 100%) of the position on amm.
func (c *ClearingHouse) PartialClose(ctx context.Context, amm common.Address, ratio, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	vals, err := uint256s([]string{"ratio", "quoteLimit"}, ratio, quoteLimit)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "partialClose", amm, vals[0], vals[1])
}

// AddMargin posts extra collateral to the position on amm.
func (c *ClearingHouse) AddMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (exchange.Transaction, error) {
	v, err := uint256("amount", amount)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "addMargin", amm, v)
}

// RemoveMargin withdraws collateral from the position on amm.
func (c *ClearingHouse) RemoveMargin(ctx context.Context, amm common.Address, amount fixedpoint.WireDecimal) (exchange.Transaction, error) {
	v, err := uint256("amount", amount)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "removeMargin", amm, v)
}

func (c *ClearingHouse) CreateLimitOrder(ctx context.Context, order exchange.LimitOrder) (exchange.Transaction, error) {
	t, err := toLimitTuple(order)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "createLimitOrder", t)
}

func (c *ClearingHouse) UpdateLimitOrder(ctx context.Context, id uint64, order exchange.LimitOrder) (exchange.Transaction, error) {
	t, err := toLimitTuple(order)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "updateLimitOrder", new(big.Int).SetUint64(id), t)
}

func (c *ClearingHouse) DeleteLimitOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	return c.transact(ctx, "deleteLimitOrder", new(big.Int).SetUint64(id))
}

func (c *ClearingHouse) CreateLimitOrderBatch(ctx context.Context, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	tuples, err := toLimitTuples(orders)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "createLimitOrderBatch", tuples)
}

// UpdateLimitOrderBatch replaces orders[i] under ids[i].
func (c *ClearingHouse) UpdateLimitOrderBatch(ctx context.Context, ids []uint64, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	if len(ids) != len(orders) {
		return nil, &exchange.InvalidArgumentError{Field: "ids", Reason: fmt.Sprintf("%d ids for %d orders", len(ids), len(orders))}
	}
	tuples, err := toLimitTuples(orders)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "updateLimitOrderBatch", ids256(ids), tuples)
}

func (c *ClearingHouse) DeleteLimitOrderBatch(ctx context.Context, ids []uint64) (exchange.Transaction, error) {
	return c.transact(ctx, "deleteLimitOrderBatch", ids256(ids))
}

func (c *ClearingHouse) CreateTriggerOrder(ctx context.Context, order exchange.TriggerOrder) (exchange.Transaction, error) {
	vals, err := uint256s([]string{"trigger", "size", "quoteLimit"}, order.Trigger, order.Size, order.QuoteLimit)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "createTriggerOrder", triggerOrderTuple{
		Trader:     order.Trader,
		Amm:        order.Amm,
		Trigger:    vals[0],
		Size:       vals[1],
		QuoteLimit: vals[2],
		TakeProfit: order.TakeProfit,
	})
}

func (c *ClearingHouse) DeleteTriggerOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	return c.transact(ctx, "deleteTriggerOrder", new(big.Int).SetUint64(id))
}

// GetPosition reads the on-chain position record of trader on amm.
func (c *ClearingHouse) GetPosition(ctx context.Context, amm, trader common.Address) (exchange.Position, error) {
	out, err := c.call(ctx, "getPosition", amm, trader)
	if err != nil {
		return exchange.Position{}, err
	}
	if len(out) == 0 {
		return exchange.Position{}, fmt.Errorf("contracts: ClearingHouse.getPosition: empty result")
	}
	raw := *abi.ConvertType(out[0], new(positionTuple)).(*positionTuple)
	return exchange.Position{
		Size:         fixedpoint.FromScaled(raw.Size, fixedpoint.Decimals),
		Margin:       fixedpoint.FromScaled(raw.Margin, fixedpoint.Decimals),
		OpenNotional: fixedpoint.FromScaled(raw.OpenNotional, fixedpoint.Decimals),
	}, nil
}

// PositionChanged is a decoded PositionChanged log.
type PositionChanged struct {
	Trader         common.Address
	Amm            common.Address
	Margin         decimal.Decimal
	Size           decimal.Decimal
	ExchangedQuote decimal.Decimal
	ExchangedSize  decimal.Decimal
	RealizedPnl    decimal.Decimal
	FundingPayment decimal.Decimal
	MarkPrice      decimal.Decimal
	Fee            decimal.Decimal

	BlockNumber uint64
	TxHash      common.Hash
	Removed     bool
}

type positionChangedLog struct {
	Trader         common.Address
	Amm            common.Address
	Margin         *big.Int
	Size           *big.Int
	ExchangedQuote *big.Int
	ExchangedSize  *big.Int
	RealizedPnL    *big.Int
	FundingPayment *big.Int
	MarkPrice      *big.Int
	Fee            *big.Int
}

// ParsePositionChanged decodes a PositionChanged log emitted by the contract.
func (c *ClearingHouse) ParsePositionChanged(lg types.Log) (*PositionChanged, error) {
	var raw positionChangedLog
	if err := c.contract.UnpackLog(&raw, positionChangedEvent, lg); err != nil {
		return nil, fmt.Errorf("contracts: unpack %s: %w", positionChangedEvent, err)
	}
	scale := func(v *big.Int) decimal.Decimal { return fixedpoint.FromScaled(v, fixedpoint.Decimals) }
	return &PositionChanged{
		Trader:         raw.Trader,
		Amm:            raw.Amm,
		Margin:         scale(raw.Margin),
		Size:           scale(raw.Size),
		ExchangedQuote: scale(raw.ExchangedQuote),
		ExchangedSize:  scale(raw.ExchangedSize),
		RealizedPnl:    scale(raw.RealizedPnL),
		FundingPayment: scale(raw.FundingPayment),
		MarkPrice:      scale(raw.MarkPrice),
		Fee:            scale(raw.Fee),
		BlockNumber:    lg.BlockNumber,
		TxHash:         lg.TxHash,
		Removed:        lg.Removed,
	}, nil
}

// PositionChangedQuery builds the log filter for PositionChanged events,
// optionally narrowed to traders and amms.
func (c *ClearingHouse) PositionChangedQuery(traders, amms []common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics: [][]common.Hash{
			{c.abi.Events[positionChangedEvent].ID},
			addressTopics(traders),
			addressTopics(amms),
		},
	}
}

// WatchPositionChanged streams decoded PositionChanged events into sink until
// the subscription is cancelled or the backend subscription fails.
func (c *ClearingHouse) WatchPositionChanged(ctx context.Context, traders, amms []common.Address, sink chan<- *PositionChanged) (event.Subscription, error) {
	logs := make(chan types.Log, 128)
	sub, err := c.backend.SubscribeFilterLogs(ctx, c.PositionChangedQuery(traders, amms), logs)
	if err != nil {
		return nil, fmt.Errorf("contracts: subscribe %s: %w", positionChangedEvent, err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case lg := <-logs:
				ev, err := c.ParsePositionChanged(lg)
				if err != nil {
					return err
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func addressTopics(addrs []common.Address) []common.Hash {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]common.Hash, len(addrs))
	for i, a := range addrs {
		out[i] = common.BytesToHash(a.Bytes())
	}
	return out
}
