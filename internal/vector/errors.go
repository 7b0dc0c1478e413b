package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrOutOfRange is returned when a row index is outside [0, Len()).
	ErrOutOfRange = errors.New("row out of range")
)

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

func checkDimensions(dim int, vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != dim {
			return &DimensionMismatchError{Expected: dim, Actual: len(v)}
		}
	}
	return nil
}
