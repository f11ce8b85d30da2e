package registry

import (
	"fmt"
	"math/bits"
)

// CalculateStoragePrice returns size × ratePerByte. It fails with
// ErrInvalidInput when size is zero or the product overflows 64 bits.
func CalculateStoragePrice(size, ratePerByte uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: size must be positive", ErrInvalidInput)
	}
	hi, lo := bits.Mul64(size, ratePerByte)
	if hi != 0 {
		return 0, fmt.Errorf("%w: price of %d bytes at rate %d overflows", ErrInvalidInput, size, ratePerByte)
	}
	return lo, nil
}
