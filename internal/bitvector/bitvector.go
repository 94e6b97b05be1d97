// Package bitvector provides word-level helpers for the one-bit-per-row
// vectors used by batches (deleted rows) and open-addressing tables
// (occupied and dirty slots).
//
// Vectors are plain []uint64 slices so they can live inside pooled columns.
// Bit i lives in word i>>6 at position i&63.
package bitvector

import (
	"math/bits"
	"runtime"

	"golang.org/x/sys/cpu"
)

// Words returns the number of 64-bit words needed to hold n bits, using the
// 1 + n/64 layout shared with batch bit-vector columns.
func Words(n int) int {
	return 1 + (n >> 6)
}

// Test reports whether bit i is set.
func Test(words []uint64, i int) bool {
	return words[i>>6]&(1<<(uint(i)&63)) != 0
}

// Set sets bit i.
func Set(words []uint64, i int) {
	words[i>>6] |= 1 << (uint(i) & 63)
}

// Clear clears bit i.
func Clear(words []uint64, i int) {
	words[i>>6] &^= 1 << (uint(i) & 63)
}

// Reset zeroes every word.
func Reset(words []uint64) {
	clear(words)
}

// popTable holds the number of set bits for every 16-bit value.
var popTable [1 << 16]uint8

func init() {
	for i := 1; i < len(popTable); i++ {
		popTable[i] = popTable[i>>1] + uint8(i&1)
	}
}

// PopCountTable counts the set bits of w by looking up its four 16-bit slices.
func PopCountTable(w uint64) int {
	return int(popTable[w&0xffff]) +
		int(popTable[(w>>16)&0xffff]) +
		int(popTable[(w>>32)&0xffff]) +
		int(popTable[w>>48])
}

// PopCount counts the set bits of w with the compiler intrinsic.
func PopCount(w uint64) int {
	return bits.OnesCount64(w)
}

// Mode selects the population-count strategy.
type Mode int

const (
	// Auto uses the intrinsic when the CPU has a native instruction for it.
	Auto Mode = iota
	// Table always uses the 16-bit lookup table.
	Table
	// Intrinsic always uses math/bits.
	Intrinsic
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Table:
		return "table"
	case Intrinsic:
		return "intrinsic"
	default:
		return "auto"
	}
}

// ParseMode converts a configuration string into a Mode. Unknown values map
// to Auto and ok is false.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "auto":
		return Auto, true
	case "table":
		return Table, true
	case "intrinsic":
		return Intrinsic, true
	}
	return Auto, false
}

// HasNativePopCount reports whether the running CPU counts bits in hardware.
func HasNativePopCount() bool {
	return cpu.X86.HasPOPCNT || runtime.GOARCH == "arm64"
}

// Counter returns the per-word counting function for the mode.
func Counter(m Mode) func(uint64) int {
	switch m {
	case Table:
		return PopCountTable
	case Intrinsic:
		return PopCount
	}
	if HasNativePopCount() {
		return PopCount
	}
	return PopCountTable
}

// CountSet returns the number of set bits in the inclusive bit range
// [start, end] using count for each word. An empty range (end < start)
// yields zero.
func CountSet(words []uint64, start, end int, count func(uint64) int) int {
	if end < start {
		return 0
	}
	first, last := start>>6, end>>6
	lowMask := ^uint64(0) << (uint(start) & 63)
	highMask := ^uint64(0) >> (63 - (uint(end) & 63))

	if first == last {
		return count(words[first] & lowMask & highMask)
	}
	n := count(words[first] & lowMask)
	for w := first + 1; w < last; w++ {
		n += count(words[w])
	}
	return n + count(words[last]&highMask)
}

// NextSet returns the index of the first set bit at or after i and below
// limit, or -1.
func NextSet(words []uint64, i, limit int) int {
	for i < limit {
		w := words[i>>6] >> (uint(i) & 63)
		if w != 0 {
			i += bits.TrailingZeros64(w)
			if i < limit {
				return i
			}
			return -1
		}
		i = (i | 63) + 1
	}
	return -1
}
