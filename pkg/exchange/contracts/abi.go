package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const limitOrderComponents = `[
	{"name":"trader","type":"address"},
	{"name":"amm","type":"address"},
	{"name":"side","type":"uint8"},
	{"name":"trigger","type":"uint256"},
	{"name":"quoteAmount","type":"uint256"},
	{"name":"leverage","type":"uint256"},
	{"name":"reduceOnly","type":"bool"}
]`

const triggerOrderComponents = `[
	{"name":"trader","type":"address"},
	{"name":"amm","type":"address"},
	{"name":"trigger","type":"uint256"},
	{"name":"size","type":"uint256"},
	{"name":"quoteLimit","type":"uint256"},
	{"name":"takeProfit","type":"bool"}
]`

// ClearingHouseABI covers the trading entry points and the position event.
var ClearingHouseABI = `[
	{"type":"function","name":"openPosition","stateMutability":"nonpayable","inputs":[
		{"name":"amm","type":"address"},{"name":"side","type":"uint8"},
		{"name":"margin","type":"uint256"},{"name":"leverage","type":"uint256"},
		{"name":"baseAssetAmountLimit","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"closePosition","stateMutability":"nonpayable","inputs":[
		{"name":"amm","type":"address"},{"name":"size","type":"uint256"},
		{"name":"quoteAssetAmountLimit","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"partialClose","stateMutability":"nonpayable","inputs":[
		{"name":"amm","type":"address"},{"name":"partialCloseRatio","type":"uint256"},
		{"name":"quoteAssetAmountLimit","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"addMargin","stateMutability":"nonpayable","inputs":[
		{"name":"amm","type":"address"},{"name":"addedMargin","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"removeMargin","stateMutability":"nonpayable","inputs":[
		{"name":"amm","type":"address"},{"name":"removedMargin","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"createLimitOrder","stateMutability":"nonpayable","inputs":[
		{"name":"order","type":"tuple","components":` + limitOrderComponents + `}],"outputs":[]},
	{"type":"function","name":"updateLimitOrder","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"},
		{"name":"order","type":"tuple","components":` + limitOrderComponents + `}],"outputs":[]},
	{"type":"function","name":"deleteLimitOrder","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"createLimitOrderBatch","stateMutability":"nonpayable","inputs":[
		{"name":"orders","type":"tuple[]","components":` + limitOrderComponents + `}],"outputs":[]},
	{"type":"function","name":"updateLimitOrderBatch","stateMutability":"nonpayable","inputs":[
		{"name":"ids","type":"uint256[]"},
		{"name":"orders","type":"tuple[]","components":` + limitOrderComponents + `}],"outputs":[]},
	{"type":"function","name":"deleteLimitOrderBatch","stateMutability":"nonpayable","inputs":[
		{"name":"ids","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"createTriggerOrder","stateMutability":"nonpayable","inputs":[
		{"name":"order","type":"tuple","components":` + triggerOrderComponents + `}],"outputs":[]},
	{"type":"function","name":"deleteTriggerOrder","stateMutability":"nonpayable","inputs":[
		{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getPosition","stateMutability":"view","inputs":[
		{"name":"amm","type":"address"},{"name":"trader","type":"address"}],"outputs":[
		{"name":"position","type":"tuple","components":[
			{"name":"size","type":"int256"},
			{"name":"margin","type":"uint256"},
			{"name":"openNotional","type":"uint256"},
			{"name":"lastUpdatedCumulativePremiumFraction","type":"int256"},
			{"name":"blockNumber","type":"uint256"}]}]},
	{"type":"event","name":"PositionChanged","anonymous":false,"inputs":[
		{"name":"trader","type":"address","indexed":true},
		{"name":"amm","type":"address","indexed":true},
		{"name":"margin","type":"int256","indexed":false},
		{"name":"size","type":"int256","indexed":false},
		{"name":"exchangedQuote","type":"int256","indexed":false},
		{"name":"exchangedSize","type":"int256","indexed":false},
		{"name":"realizedPnL","type":"int256","indexed":false},
		{"name":"fundingPayment","type":"int256","indexed":false},
		{"name":"markPrice","type":"uint256","indexed":false},
		{"name":"fee","type":"uint256","indexed":false}]}
]`

// ERC20ABI covers the collateral token calls used for margin.
var ERC20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	abiOnce          sync.Once
	clearingHouseABI abi.ABI
	erc20ABI         abi.ABI
	abiErr           error
)

func parsedABIs() (abi.ABI, abi.ABI, error) {
	abiOnce.Do(func() {
		clearingHouseABI, abiErr = abi.JSON(strings.NewReader(ClearingHouseABI))
		if abiErr != nil {
			abiErr = fmt.Errorf("contracts: parse clearing house abi: %w", abiErr)
			return
		}
		erc20ABI, abiErr = abi.JSON(strings.NewReader(ERC20ABI))
		if abiErr != nil {
			abiErr = fmt.Errorf("contracts: parse erc20 abi: %w", abiErr)
		}
	})
	return clearingHouseABI, erc20ABI, abiErr
}
