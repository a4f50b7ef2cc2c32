package exchange_test

import "github.com/shopspring/decimal"

func mustDecimal(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}
