package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

// ClearingHouse implements exchange.ClearingHouse over the simulator.
type ClearingHouse struct {
	ex *Exchange
}

var _ exchange.ClearingHouse = (*ClearingHouse)(nil)

func (c *ClearingHouse) Address() common.Address { return c.ex.clearingHouse }

// OpenPosition fills margin*leverage of notional at the mark price. A
// non-zero baseLimit is the minimum size for buys and the maximum for sells.
func (c *ClearingHouse) OpenPosition(ctx context.Context, amm common.Address, side exchange.Side, margin, leverage, baseLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	const method = "openPosition"
	m, err := amount(method, "margin", margin)
	if err != nil {
		return nil, err
	}
	lev, err := amount(method, "leverage", leverage)
	if err != nil {
		return nil, err
	}
	limit, err := amount(method, "baseLimit", baseLimit)
	if err != nil {
		return nil, err
	}
	if !m.IsPositive() || !lev.IsPositive() {
		return nil, &RevertError{Method: method, Reason: "margin and leverage must be positive"}
	}
	if !side.Valid() {
		return nil, &RevertError{Method: method, Reason: fmt.Sprintf("bad side %q", side)}
	}

	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	price, err := ex.markLocked(method, amm)
	if err != nil {
		return nil, err
	}
	notional := m.Mul(lev)
	size := fixedpoint.Round(notional.DivRound(price, 2*fixedpoint.Decimals), fixedpoint.Decimals, fixedpoint.RoundDown)
	if !limit.IsZero() {
		if side == exchange.SideBuy && size.LessThan(limit) {
			return nil, &RevertError{Method: method, Reason: "less than minimal base token"}
		}
		if side == exchange.SideSell && size.GreaterThan(limit) {
			return nil, &RevertError{Method: method, Reason: "more than maximal base token"}
		}
	}

	key := posKey{amm: amm, trader: ex.sender}
	pos := ex.positions[key]
	if pos != nil && !pos.IsFlat() {
		if current, _ := pos.Side(); current != side {
			return nil, &RevertError{Method: method, Reason: "reverse position not supported, close first"}
		}
	}
	if err := ex.pullLocked(method, m); err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &exchange.Position{}
		ex.positions[key] = pos
	}
	if side == exchange.SideSell {
		size = size.Neg()
	}
	pos.Size = pos.Size.Add(size)
	pos.Margin = pos.Margin.Add(m)
	pos.OpenNotional = pos.OpenNotional.Add(notional)
	return ex.settleLocked(method), nil
}

// ClosePosition closes size of the position at the mark price. A non-zero
// quoteLimit is the minimum quote for longs and the maximum for shorts.
func (c *ClearingHouse) ClosePosition(ctx context.Context, amm common.Address, size, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	const method = "closePosition"
	sz, err := amount(method, "size", size)
	if err != nil {
		return nil, err
	}
	limit, err := amount(method, "quoteLimit", quoteLimit)
	if err != nil {
		return nil, err
	}
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if err := ex.closeLocked(method, amm, sz, limit); err != nil {
		return nil, err
	}
	return ex.settleLocked(method), nil
}

// PartialClose closes ratio (a fraction in (0, 1]) of the position.
func (c *ClearingHouse) PartialClose(ctx context.Context, amm common.Address, ratio, quoteLimit fixedpoint.WireDecimal) (exchange.Transaction, error) {
	const method = "partialClose"
	r, err := amount(method, "ratio", ratio)
	if err != nil {
		return nil, err
	}
	if !r.IsPositive() || r.GreaterThan(decimal.NewFromInt(1)) {
		return nil, &RevertError{Method: method, Reason: "ratio must be in (0, 1]"}
	}
	limit, err := amount(method, "quoteLimit", quoteLimit)
	if err != nil {
		return nil, err
	}
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	pos := ex.positions[posKey{amm: amm, trader: ex.sender}]
	if pos == nil || pos.IsFlat() {
		return nil, &RevertError{Method: method, Reason: "position not found"}
	}
	sz := fixedpoint.Round(pos.Size.Abs().Mul(r), fixedpoint.Decimals, fixedpoint.RoundDown)
	if err := ex.closeLocked(method, amm, sz, limit); err != nil {
		return nil, err
	}
	return ex.settleLocked(method), nil
}

func (e *Exchange) closeLocked(method string, amm common.Address, size, quoteLimit decimal.Decimal) error {
	key := posKey{amm: amm, trader: e.sender}
	pos := e.positions[key]
	if pos == nil || pos.IsFlat() {
		return &RevertError{Method: method, Reason: "position not found"}
	}
	if !size.IsPositive() || size.GreaterThan(pos.Size.Abs()) {
		return &RevertError{Method: method, Reason: "invalid close size"}
	}
	price, err := e.markLocked(method, amm)
	if err != nil {
		return err
	}
	quote := size.Mul(price)
	long := pos.Size.IsPositive()
	if !quoteLimit.IsZero() {
		if long && quote.LessThan(quoteLimit) {
			return &RevertError{Method: method, Reason: "less than minimal quote token"}
		}
		if !long && quote.GreaterThan(quoteLimit) {
			return &RevertError{Method: method, Reason: "more than maximal quote token"}
		}
	}

	frac := size.DivRound(pos.Size.Abs(), fixedpoint.Decimals)
	openShare := pos.OpenNotional.Mul(frac)
	marginShare := pos.Margin.Mul(frac)
	pnl := quote.Sub(openShare)
	if !long {
		pnl = pnl.Neg()
	}
	payout := marginShare.Add(pnl)
	if payout.IsNegative() {
		payout = decimal.Zero
	}
	e.balances[e.sender] = e.balances[e.sender].Add(payout)

	if size.Equal(pos.Size.Abs()) {
		delete(e.positions, key)
		return nil
	}
	if long {
		pos.Size = pos.Size.Sub(size)
	} else {
		pos.Size = pos.Size.Add(size)
	}
	pos.OpenNotional = pos.OpenNotional.Sub(openShare)
	pos.Margin = pos.Margin.Sub(marginShare)
	return nil
}

func (c *ClearingHouse) AddMargin(ctx context.Context, amm common.Address, amt fixedpoint.WireDecimal) (exchange.Transaction, error) {
	const method = "addMargin"
	a, err := amount(method, "amount", amt)
	if err != nil {
		return nil, err
	}
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	pos := ex.positions[posKey{amm: amm, trader: ex.sender}]
	if pos == nil || pos.IsFlat() {
		return nil, &RevertError{Method: method, Reason: "position not found"}
	}
	if err := ex.pullLocked(method, a); err != nil {
		return nil, err
	}
	pos.Margin = pos.Margin.Add(a)
	return ex.settleLocked(method), nil
}

func (c *ClearingHouse) RemoveMargin(ctx context.Context, amm common.Address, amt fixedpoint.WireDecimal) (exchange.Transaction, error) {
	const method = "removeMargin"
	a, err := amount(method, "amount", amt)
	if err != nil {
		return nil, err
	}
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	pos := ex.positions[posKey{amm: amm, trader: ex.sender}]
	if pos == nil || pos.IsFlat() {
		return nil, &RevertError{Method: method, Reason: "position not found"}
	}
	if a.GreaterThan(pos.Margin) {
		return nil, &RevertError{Method: method, Reason: "margin not enough"}
	}
	pos.Margin = pos.Margin.Sub(a)
	ex.balances[ex.sender] = ex.balances[ex.sender].Add(a)
	return ex.settleLocked(method), nil
}

func (c *ClearingHouse) CreateLimitOrder(ctx context.Context, order exchange.LimitOrder) (exchange.Transaction, error) {
	return c.CreateLimitOrderBatch(ctx, []exchange.LimitOrder{order})
}

func (c *ClearingHouse) UpdateLimitOrder(ctx context.Context, id uint64, order exchange.LimitOrder) (exchange.Transaction, error) {
	return c.UpdateLimitOrderBatch(ctx, []uint64{id}, []exchange.LimitOrder{order})
}

func (c *ClearingHouse) DeleteLimitOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	return c.DeleteLimitOrderBatch(ctx, []uint64{id})
}

func (c *ClearingHouse) CreateLimitOrderBatch(ctx context.Context, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	const method = "createLimitOrder"
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for _, o := range orders {
		if o.Trader != ex.sender {
			return nil, &RevertError{Method: method, Reason: "trader is not the sender"}
		}
	}
	for _, o := range orders {
		ex.limitOrders[ex.nextOrderID] = o
		ex.nextOrderID++
	}
	return ex.settleLocked(method), nil
}

func (c *ClearingHouse) UpdateLimitOrderBatch(ctx context.Context, ids []uint64, orders []exchange.LimitOrder) (exchange.Transaction, error) {
	const method = "updateLimitOrder"
	if len(ids) != len(orders) {
		return nil, &RevertError{Method: method, Reason: "length mismatch"}
	}
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for _, id := range ids {
		if err := ex.ownedLimitLocked(method, id); err != nil {
			return nil, err
		}
	}
	for i, id := range ids {
		ex.limitOrders[id] = orders[i]
	}
	return ex.settleLocked(method), nil
}

func (c *ClearingHouse) DeleteLimitOrderBatch(ctx context.Context, ids []uint64) (exchange.Transaction, error) {
	const method = "deleteLimitOrder"
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for _, id := range ids {
		if err := ex.ownedLimitLocked(method, id); err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		delete(ex.limitOrders, id)
	}
	return ex.settleLocked(method), nil
}

func (e *Exchange) ownedLimitLocked(method string, id uint64) error {
	o, ok := e.limitOrders[id]
	if !ok {
		return &RevertError{Method: method, Reason: fmt.Sprintf("order %d not found", id)}
	}
	if o.Trader != e.sender {
		return &RevertError{Method: method, Reason: fmt.Sprintf("order %d not owned by sender", id)}
	}
	return nil
}

func (c *ClearingHouse) CreateTriggerOrder(ctx context.Context, order exchange.TriggerOrder) (exchange.Transaction, error) {
	const method = "createTriggerOrder"
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if order.Trader != ex.sender {
		return nil, &RevertError{Method: method, Reason: "trader is not the sender"}
	}
	ex.triggerOrders[ex.nextOrderID] = order
	ex.nextOrderID++
	return ex.settleLocked(method), nil
}

func (c *ClearingHouse) DeleteTriggerOrder(ctx context.Context, id uint64) (exchange.Transaction, error) {
	const method = "deleteTriggerOrder"
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	o, ok := ex.triggerOrders[id]
	if !ok || o.Trader != ex.sender {
		return nil, &RevertError{Method: method, Reason: fmt.Sprintf("order %d not found", id)}
	}
	delete(ex.triggerOrders, id)
	return ex.settleLocked(method), nil
}

// GetPosition returns a copy of the position; flat when none is open.
func (c *ClearingHouse) GetPosition(ctx context.Context, amm, trader common.Address) (exchange.Position, error) {
	ex := c.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()
	pos := ex.positions[posKey{amm: amm, trader: trader}]
	if pos == nil {
		return exchange.Position{}, nil
	}
	return *pos, nil
}

func (e *Exchange) markLocked(method string, amm common.Address) (decimal.Decimal, error) {
	price, ok := e.markPx[amm]
	if !ok {
		return decimal.Zero, &RevertError{Method: method, Reason: fmt.Sprintf("no mark price for amm %s", amm.Hex())}
	}
	return price, nil
}
