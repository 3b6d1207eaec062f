package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for positive integers.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// DivRound returns a/b rounded to nearest, ties away from zero.
// b == 0 yields 0.
func DivRound[T constraints.Signed](a, b T) T {
	if b == 0 {
		return 0
	}
	if b < 0 {
		a, b = -a, -b
	}
	if a >= 0 {
		return (a + b/2) / b
	}
	return (a - b/2) / b
}

// MulDiv returns a*b/c rounded to nearest using a 64-bit intermediate.
func MulDiv(a, b, c int64) int64 {
	return DivRound(a*b, c)
}
