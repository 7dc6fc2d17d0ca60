// SPDX-License-Identifier: MIT
//
// Package bitint provides the power-of-two helpers FFT sizing needs. All
// functions are constant time and allocation free.
package bitint

import "math/bits"

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// NextPowerOfTwo returns the smallest power of 2 >= n, and 1 for n <= 0.
// Subtracting 1 first keeps exact powers of 2 unchanged: Len(7) is 3 so 8
// maps to 1<<3, where Len(8) would double it.
func NextPowerOfTwo[T Integer](n T) T {
	if n <= 0 {
		return 1
	}
	return T(1) << bits.Len64(uint64(n-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= n, and 0 for n <= 0.
func PrevPowerOfTwo[T Integer](n T) T {
	if n <= 0 {
		return 0
	}
	return T(1) << (bits.Len64(uint64(n)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// a single bit set, so clearing its lowest set bit leaves zero.
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the exponent of a power of 2 and -1 for anything else.
func Log2[T Integer](n T) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros64(uint64(n))
}
