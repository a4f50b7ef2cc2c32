package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// WireDecimal is the contract call encoding of an amount: the scaled integer
// carried as a decimal string.
type WireDecimal struct {
	D string `json:"d"`
}

// ToWireDecimal scales amount to 18 decimals (half away from zero) and wraps
// it for a contract call.
func ToWireDecimal(amount decimal.Decimal) WireDecimal {
	return WireDecimal{D: ToScaled(amount, Decimals).String()}
}

// ToWireDecimalRounded is ToWireDecimal with an explicit rounding direction.
func ToWireDecimalRounded(amount decimal.Decimal, mode Rounding) WireDecimal {
	return WireDecimal{D: ToScaledRounded(amount, Decimals, mode).String()}
}

// WireFromInt wraps an already scaled integer.
func WireFromInt(v *big.Int) WireDecimal {
	if v == nil {
		return WireDecimal{D: "0"}
	}
	return WireDecimal{D: v.String()}
}

// Int returns the scaled integer. An empty value is zero.
func (w WireDecimal) Int() (*big.Int, error) {
	if w.D == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(w.D, 10)
	if !ok {
		return nil, fmt.Errorf("fixedpoint: invalid wire decimal %q", w.D)
	}
	return v, nil
}

// Decimal converts the wire value back into human units.
func (w WireDecimal) Decimal() (decimal.Decimal, error) {
	v, err := w.Int()
	if err != nil {
		return decimal.Zero, err
	}
	return FromScaled(v, Decimals), nil
}

// IsZero reports whether the wire value encodes zero.
func (w WireDecimal) IsZero() bool {
	v, err := w.Int()
	return err == nil && v.Sign() == 0
}

func (w WireDecimal) String() string {
	if w.D == "" {
		return "0"
	}
	return w.D
}
