/*
Package bitint provides the bit manipulation helpers used by the
fixed-point feature frontend: power-of-2 sizing for the FFT and
most-significant-bit queries for headroom shifts, integer logarithms
and the PCAN gain lookup.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Size the FFT for a 30 ms window at 16 kHz
	fftSize := bitint.NextPowerOfTwo(480) // Returns 512

	// Headroom available in a 16-bit peak value
	shift := 15 - bitint.MostSignificantBit32(uint32(peak))

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the next power of 2 greater than or
	equal to size. The subtraction (size-1) keeps exact powers of 2
	unchanged: bits.Len(7) = 3 and 1 << 3 = 8, where bits.Len(8)
	would have doubled the input to 16.

	MostSignificantBit32 is the 1-based position of the highest set
	bit, or 0 for a zero input. It equals floor(log2(x)) + 1 and is
	the quantity the fixed-point stages call "msb".
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	480    512
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// MostSignificantBit32 returns the 1-based index of the highest set bit
// of x, or 0 when x is 0.
//
//	Input  Output
//	0      0
//	1      1
//	2      2
//	512    10
func MostSignificantBit32(x uint32) int {
	return bits.Len32(x)
}

// MostSignificantBit64 is the 64-bit variant of MostSignificantBit32.
func MostSignificantBit64(x uint64) int {
	return bits.Len64(x)
}
