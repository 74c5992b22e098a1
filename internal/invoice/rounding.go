package invoice

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundOff rounds total to the nearest whole unit, halves away from zero, and
// returns the signed adjustment rounded - total. With rounding disabled the
// total is returned unchanged with a zero adjustment.
func RoundOff(total float64, enabled bool) (rounded float64, adjustment float64) {
	if !enabled || math.IsNaN(total) || math.IsInf(total, 0) {
		return total, 0
	}
	exact := decimal.NewFromFloat(total)
	whole := exact.Round(0)
	return whole.InexactFloat64(), whole.Sub(exact).InexactFloat64()
}
