package collections

import (
	"math"
)

// primes is the ascending table sizes are drawn from. Consecutive entries
// grow by roughly 1.2x so ExpandPrime can find a prime just above double.
var primes = [...]int{
	3, 7, 11, 17, 23, 29, 37, 47, 59, 71, 89, 107, 131, 163, 197, 239, 293, 353, 431, 521, 631, 761, 919,
	1103, 1327, 1597, 1931, 2333, 2801, 3371, 4049, 4861, 5839, 7013, 8419, 10103, 12143, 14591,
	17519, 21023, 25229, 30293, 36353, 43627, 52361, 62851, 75431, 90523, 108631, 130363, 156437,
	187751, 225307, 270371, 324449, 389357, 467237, 560689, 672827, 807403, 968897, 1162687, 1395263,
	1674319, 2009191, 2411033, 2893249, 3471899, 4166287, 4999559, 5999471, 7199369,
}

// MaxPrimeArrayLength is the largest prime below the maximum table length.
const MaxPrimeArrayLength = 0x7FFFFFC3

// IsPrime reports whether n is prime.
func IsPrime(n int) bool {
	if n&1 == 0 {
		return n == 2
	}
	limit := int(math.Sqrt(float64(n)))
	for d := 3; d <= limit; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return n > 1
}

// GetPrime returns the smallest table prime >= minSize. Above the table it
// searches odd numbers by trial division.
func GetPrime(minSize int) int {
	for _, p := range primes {
		if p >= minSize {
			return p
		}
	}
	for n := minSize | 1; n < math.MaxInt32; n += 2 {
		if IsPrime(n) {
			return n
		}
	}
	return minSize
}

// ExpandPrime returns the table size to grow to from oldSize: the smallest
// prime at least twice as large.
func ExpandPrime(oldSize int) int {
	newSize := 2 * oldSize
	if newSize > MaxPrimeArrayLength && MaxPrimeArrayLength > oldSize {
		return MaxPrimeArrayLength
	}
	return GetPrime(newSize)
}
