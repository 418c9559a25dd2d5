// Package money holds the pure arithmetic used for table changes and refunds.
// Amounts are decimal currency units rounded to cents.
package money

import (
	"math"
	"strconv"
	"strings"
)

// maxExact is the magnitude past which float64 cannot hold cents exactly.
const maxExact = 1e13

// Round2 rounds x to the nearest cent, halves away from zero.
// Rounding works on the shortest decimal form of x, so 1.005 becomes 1.01.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	abs := math.Abs(x)
	if abs >= maxExact {
		return math.Round(x*100) / 100
	}
	s := strconv.FormatFloat(abs, 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	frac += "000"
	cents, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return math.Round(x*100) / 100
	}
	if frac[2] >= '5' {
		cents++
	}
	r := float64(cents) / 100
	if x < 0 && cents != 0 {
		return -r
	}
	return r
}

// ComputeTableChangeDelta prices a move between tables.
// A positive result is owed by the guest, a negative one is refunded.
func ComputeTableChangeDelta(oldPrice, newPrice, serviceFeeRate float64) float64 {
	if oldPrice == newPrice {
		return 0
	}
	return Round2((newPrice - oldPrice) * (1 + serviceFeeRate))
}

// Add sums amounts and rounds the result to cents.
func Add(a, b float64) float64 {
	return Round2(a + b)
}

// ToMinorUnits converts an amount to integer cents for the payment gateway.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(Round2(amount) * 100))
}

func FromMinorUnits(minor int64) float64 {
	return Round2(float64(minor) / 100)
}

// WithinCent reports whether a and b differ by at most one cent.
func WithinCent(a, b float64) bool {
	d := ToMinorUnits(a) - ToMinorUnits(b)
	return d >= -1 && d <= 1
}
