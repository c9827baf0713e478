package models

import "github.com/shopspring/decimal"

// Round2 rounds a price or percentage to cents, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PctChange returns (to-from)/from*100 rounded to two decimals, or 0 when from is zero.
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	f := decimal.NewFromFloat(from)
	return decimal.NewFromFloat(to).Sub(f).Div(f).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
