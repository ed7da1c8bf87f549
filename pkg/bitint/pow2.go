// Package bitint provides the power-of-two helpers used when sizing FFT
// windows and ring buffers. All operations are constant-time and
// allocation-free.
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Powers of two are
// preserved; zero and negative inputs map to 1.
//
// The size-1 subtraction is what preserves exact powers of two: for 8,
// bits.Len64(7) = 3 and 1<<3 = 8, while without it bits.Len64(8) = 4 would
// incorrectly double the input to 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of two
// have exactly one bit set, so n&(n-1) clears to zero only for them.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
