package domain

import "math"

// Cost multiplies a per-unit price by a quantity and reports whether
// the product fits in an int64. Both arguments must be non-negative;
// an overflowing order value can never be paid, so callers treat
// ok == false like an unaffordable cost.
func Cost(price, quantity int64) (int64, bool) {
	if price == 0 || quantity == 0 {
		return 0, true
	}
	if price > math.MaxInt64/quantity {
		return 0, false
	}
	return price * quantity, true
}
