// Package sim is an in-memory paper exchange: a clearing house and a
// collateral token that settle immediately against mark prices set by the
// caller. It keeps the same contract surface as the on-chain bindings so the
// SDK can run against it unchanged.
package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

var (
	defaultClearingHouse = common.HexToAddress("0x00000000000000000000000000000000000c1ea0")
	defaultCollateral    = common.HexToAddress("0x00000000000000000000000000000000000c0117")
)

// RevertError is returned at submission when the simulated call would revert.
type RevertError struct {
	Method string
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("sim: %s reverted: %s", e.Method, e.Reason)
}

type posKey struct {
	amm    common.Address
	trader common.Address
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Exchange holds the simulated state. Calls are made on behalf of one sender,
// mirroring a signer-bound contract binding.
type Exchange struct {
	mu sync.Mutex

	sender        common.Address
	clearingHouse common.Address
	collateral    common.Address

	markPx     map[common.Address]decimal.Decimal
	positions  map[posKey]*exchange.Position
	balances   map[common.Address]decimal.Decimal
	allowances map[allowanceKey]*big.Int

	limitOrders   map[uint64]exchange.LimitOrder
	triggerOrders map[uint64]exchange.TriggerOrder
	nextOrderID   uint64

	nonce   uint64
	journal []Call
}

// Call records one accepted state-changing call.
type Call struct {
	Method string
	Hash   common.Hash
}

// Option customises the simulator.
type Option func(*Exchange)

// WithAddresses overrides the clearing-house and collateral addresses.
func WithAddresses(clearingHouse, collateral common.Address) Option {
	return func(e *Exchange) {
		e.clearingHouse = clearingHouse
		e.collateral = collateral
	}
}

// New constructs a simulator acting as sender.
func New(sender common.Address, opts ...Option) *Exchange {
	e := &Exchange{
		sender:        sender,
		clearingHouse: defaultClearingHouse,
		collateral:    defaultCollateral,
		markPx:        make(map[common.Address]decimal.Decimal),
		positions:     make(map[posKey]*exchange.Position),
		balances:      make(map[common.Address]decimal.Decimal),
		allowances:    make(map[allowanceKey]*big.Int),
		limitOrders:   make(map[uint64]exchange.LimitOrder),
		triggerOrders: make(map[uint64]exchange.TriggerOrder),
		nextOrderID:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClearingHouse returns the clearing-house view.
func (e *Exchange) ClearingHouse() *ClearingHouse { return &ClearingHouse{ex: e} }

// Token returns the collateral token view.
func (e *Exchange) Token() *Token { return &Token{ex: e} }

// SetMarkPrice sets the fill price of amm.
func (e *Exchange) SetMarkPrice(amm common.Address, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("sim: mark price must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markPx[amm] = price
	return nil
}

// Mint credits owner with amount of collateral.
func (e *Exchange) Mint(owner common.Address, amount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[owner] = e.balances[owner].Add(amount)
}

// Calls lists accepted state-changing calls in submission order.
func (e *Exchange) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.journal))
	copy(out, e.journal)
	return out
}

// LimitOrders returns a copy of the resting limit orders by id.
func (e *Exchange) LimitOrders() map[uint64]exchange.LimitOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint64]exchange.LimitOrder, len(e.limitOrders))
	for id, o := range e.limitOrders {
		out[id] = o
	}
	return out
}

// TriggerOrders returns a copy of the resting trigger orders by id.
func (e *Exchange) TriggerOrders() map[uint64]exchange.TriggerOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint64]exchange.TriggerOrder, len(e.triggerOrders))
	for id, o := range e.triggerOrders {
		out[id] = o
	}
	return out
}

// settleLocked records method and returns its transaction.
func (e *Exchange) settleLocked(method string) exchange.Transaction {
	e.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], e.nonce)
	hash := crypto.Keccak256Hash(e.sender.Bytes(), []byte(method), buf[:])
	e.journal = append(e.journal, Call{Method: method, Hash: hash})
	return &tx{hash: hash}
}

type tx struct {
	hash common.Hash
}

func (t *tx) Hash() common.Hash { return t.hash }

// Wait returns immediately; simulated calls settle at submission.
func (t *tx) Wait(ctx context.Context) error { return ctx.Err() }

func amount(method, field string, w fixedpoint.WireDecimal) (decimal.Decimal, error) {
	d, err := w.Decimal()
	if err != nil {
		return decimal.Zero, &RevertError{Method: method, Reason: fmt.Sprintf("bad %s: %v", field, err)}
	}
	if d.IsNegative() {
		return decimal.Zero, &RevertError{Method: method, Reason: fmt.Sprintf("negative %s", field)}
	}
	return d, nil
}

// pullLocked moves amount of the sender's collateral into the clearing house.
func (e *Exchange) pullLocked(method string, amt decimal.Decimal) error {
	if e.balances[e.sender].LessThan(amt) {
		return &RevertError{Method: method, Reason: "transfer amount exceeds balance"}
	}
	allowed := e.allowances[allowanceKey{owner: e.sender, spender: e.clearingHouse}]
	if allowed == nil || fixedpoint.FromScaled(allowed, fixedpoint.Decimals).LessThan(amt) {
		return &RevertError{Method: method, Reason: "insufficient allowance"}
	}
	scaled := fixedpoint.ToScaled(amt, fixedpoint.Decimals)
	if allowed.Cmp(gethmath.MaxBig256) != 0 {
		e.allowances[allowanceKey{owner: e.sender, spender: e.clearingHouse}] = new(big.Int).Sub(allowed, scaled)
	}
	e.balances[e.sender] = e.balances[e.sender].Sub(amt)
	return nil
}
