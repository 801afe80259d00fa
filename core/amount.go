package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// amountPrecision is the number of decimal places carried by scaled
// amounts (0.0001 resolution).
const amountPrecision int32 = 4

var amountScale = decimal.New(1, amountPrecision)

// ParseAmount converts a display amount like "1.5" into its scaled uint64
// representation. Uses decimal arithmetic to avoid floating-point errors
// at the money boundary.
func ParseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", s)
	}
	scaled := d.Mul(amountScale).Round(0)
	if !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatAmount renders a scaled uint64 amount back into its display form.
func FormatAmount(v uint64) string {
	return decimal.NewFromUint64(v).Div(amountScale).String()
}
