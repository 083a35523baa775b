// SPDX-License-Identifier: MIT
// Package bitint provides the power-of-two arithmetic internal/ring
// needs for mask-based index wraparound: ring capacities are rounded up
// to a power of two so readPos/writePos wraparound reduces to a cheap
// bitwise AND instead of a modulo.
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size (size itself, if it
// already is one). size <= 0 returns 1.
//
// bits.Len64(size-1) gives the bit position of the highest set bit in
// size-1; shifting 1 left by that many places lands exactly on size for
// powers of two and one step past it otherwise. The -1 is what keeps
// exact powers of two from doubling: without it, bits.Len64(8) == 4 and
// 1<<4 == 16 instead of 8.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	if ^uint(0)>>63 == 1 {
		return int(1 << bits.Len64(uint64(size-1)))
	}
	return int(1 << bits.Len32(uint32(size-1)))
}

// IsPowerOfTwo reports whether n is a power of two. A power of two has
// exactly one bit set, so n&(n-1) clears it and the result is zero only
// for powers of two (and never for n <= 0).
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
