package types

import (
	"errors"
	"math"
)

// ErrAmountOverflow is returned when checked arithmetic on an amount would
// overflow int64.
var ErrAmountOverflow = errors.New("flashledger: amount overflow")

// Amounts are signed 64-bit integers in the asset's smallest unit. All
// arithmetic is integer-only and checked; callers translate a false ok into
// their own overflow error.

// AddAmount returns a+b and whether the sum fits in an int64.
func AddAmount(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

// MulDivAmount returns a*num/den rounded toward zero, and whether the
// result is defined and fits in an int64.
func MulDivAmount(a, num, den int64) (int64, bool) {
	if den == 0 {
		return 0, false
	}
	if a == 0 || num == 0 {
		return 0, true
	}
	p := a * num
	if p/num != a || (a == -1 && num == math.MinInt64) || (num == -1 && a == math.MinInt64) {
		return 0, false
	}
	if p == math.MinInt64 && den == -1 {
		return 0, false
	}
	return p / den, true
}

// NegateAmount returns -a and whether the negation fits in an int64.
func NegateAmount(a int64) (int64, bool) {
	if a == math.MinInt64 {
		return 0, false
	}
	return -a, true
}
