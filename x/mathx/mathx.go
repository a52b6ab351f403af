// Package mathx holds the small generic helpers the driver and services
// share for FIFO levels, poll intervals and divisor arithmetic.
package mathx

import "golang.org/x/exp/constraints"

func Min[T constraints.Ordered](a, b T) T {
	if b < a {
		return b
	}
	return a
}

func Max[T constraints.Ordered](a, b T) T {
	if b > a {
		return b
	}
	return a
}

// Clamp bounds v by lo and hi, taken in either order.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Max(Min(lo, hi), Min(v, Max(lo, hi)))
}

// CeilDiv returns ceil(a/b). b == 0 yields 0.
// a+b-1 must not overflow T; callers widen first.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
