package contracts

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/zeromicro/go-zero/core/logx"
)

// Backend is the RPC surface the bindings need. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("contracts: rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("contracts: dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// Signer holds the trader key and signs transactions for one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewSigner parses a hex private key (with or without 0x prefix).
func NewSigner(privateKeyHex string, chainID *big.Int) (*Signer, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("contracts: chain id is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("contracts: parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address { return s.address }

// TransactOpts returns fresh transaction options bound to ctx.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("contracts: build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// RevertedError reports a mined transaction whose receipt status is failure.
type RevertedError struct {
	Hash common.Hash
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("contracts: transaction %s reverted", e.Hash.Hex())
}

type pendingTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
	method  string
}

func (p *pendingTx) Hash() common.Hash { return p.tx.Hash() }

func (p *pendingTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return fmt.Errorf("contracts: wait %s %s: %w", p.method, p.tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &RevertedError{Hash: p.tx.Hash()}
	}
	logx.WithContext(ctx).Infof("contracts: %s mined tx=%s block=%s gas_used=%d", p.method, p.tx.Hash().Hex(), receipt.BlockNumber, receipt.GasUsed)
	return nil
}
