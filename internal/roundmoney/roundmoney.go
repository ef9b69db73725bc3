// Package roundmoney rounds monetary totals the way the summary endpoint
// contract requires: half-away-from-zero, to a fixed number of decimals.
package roundmoney

import "math"

// ToDecimals rounds value to the given number of decimal places using
// half-away-from-zero rounding (1.125 -> 1.13, -1.125 -> -1.13). The input
// is a float64, so a decimal tie that has no exact binary form rounds by
// its stored value (1.005 is stored just below the tie and gives 1.00),
// matching
// the behavior Go's math.Round already gives for positive shifted values
// and which also holds for negatives since math.Round itself rounds halves
// away from zero.
func ToDecimals(value float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(value*shift) / shift
}

// ToCents is the two-decimal case used for every monetary amount in this
// system's responses.
func ToCents(value float64) float64 {
	return ToDecimals(value, 2)
}
