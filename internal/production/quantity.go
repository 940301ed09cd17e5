package production

import "github.com/shopspring/decimal"

// QuantityPlaces is the precision product counters are kept at. Free-text
// counts such as "0.1" are not exact in binary, so every subtraction is done
// in decimal and rounded back to this many places.
const QuantityPlaces = 3

// RoundQuantity rounds v to QuantityPlaces.
func RoundQuantity(v float64) float64 {
	return decimal.NewFromFloat(v).Round(QuantityPlaces).InexactFloat64()
}

// SubtractQuantity returns remaining-count at QuantityPlaces. ok is false
// when count exceeds remaining; remaining is then returned unchanged.
func SubtractQuantity(remaining, count float64) (left float64, ok bool) {
	r := decimal.NewFromFloat(remaining).Round(QuantityPlaces)
	c := decimal.NewFromFloat(count).Round(QuantityPlaces)
	if c.GreaterThan(r) {
		return remaining, false
	}
	return r.Sub(c).InexactFloat64(), true
}
