package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
)

type boundContract struct {
	name     string
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	backend  Backend
	signer   *Signer
}

func newBound(name string, address common.Address, parsed abi.ABI, backend Backend, signer *Signer) *boundContract {
	return &boundContract{
		name:     name,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		signer:   signer,
	}
}

func (b *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("contracts: %s.%s: %w", b.name, method, err)
	}
	return out, nil
}

func (b *boundContract) transact(ctx context.Context, method string, args ...interface{}) (exchange.Transaction, error) {
	if b.signer == nil {
		return nil, &exchange.ReadOnlyModeError{}
	}
	opts, err := b.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := b.contract.Transact(opts, method, args...)
	if err != nil {
		logx.WithContext(ctx).Errorf("contracts: %s.%s submit failed from=%s err=%v", b.name, method, b.signer.Address().Hex(), err)
		return nil, fmt.Errorf("contracts: %s.%s: %w", b.name, method, err)
	}
	logx.WithContext(ctx).Infof("contracts: %s.%s submitted tx=%s nonce=%d", b.name, method, tx.Hash().Hex(), tx.Nonce())
	return &pendingTx{tx: tx, backend: b.backend, method: method}, nil
}
