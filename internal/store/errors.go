package store

import (
	"errors"

	"github.com/hyperjump/vidgrep/internal/vector"
)

var (
	// ErrBatchSizeMismatch is returned when vectors and records differ in count.
	ErrBatchSizeMismatch = errors.New("batch size mismatch")
	// ErrCorruptStore is returned when persisted artifacts are inconsistent at load.
	ErrCorruptStore = errors.New("corrupt store")
	// ErrDimensionMismatch matches vector.DimensionMismatchError values.
	ErrDimensionMismatch = vector.ErrDimensionMismatch
	// ErrOutOfRange is returned when a row cannot be reconstructed.
	ErrOutOfRange = vector.ErrOutOfRange
)
