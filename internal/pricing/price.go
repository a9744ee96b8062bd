// Package pricing implements the deterministic price calculation for
// period bookings. The functions here are pure and referentially
// transparent; they are the single source of truth for totals shown to the
// caller and amounts sent to the payment provider.
package pricing

import "math"

// Total returns perPeriod multiplied by count, rounded to two decimal
// places. Halves round away from zero; the same rounding is applied
// everywhere a price is computed. When count is zero or perPeriod is not
// positive the total is 0.
func Total(perPeriod float64, count int) float64 {
	if count <= 0 || perPeriod <= 0 {
		return 0
	}
	return round2(perPeriod * float64(count))
}

// MinorUnits converts a price in currency units to integer minor units
// (cents), as required by the payment provider.
func MinorUnits(total float64) int64 {
	return int64(math.Round(total * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
