package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/vidgrep/internal/catalog"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/internal/snapshot"
	"github.com/hyperjump/vidgrep/internal/store"
)

// ErrorPayload is printed on failure in JSON mode.
type ErrorPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ErrorKind classifies err for scripts. Unrecognized errors are "error".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrCorruptStore):
		return "corrupt_store"
	case errors.Is(err, store.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, store.ErrBatchSizeMismatch):
		return "batch_size_mismatch"
	case errors.Is(err, store.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, models.ErrEmptyQuery):
		return "invalid_query"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, snapshot.ErrIncomplete):
		return "incomplete_snapshot"
	default:
		return "error"
	}
}

// WriteError reports err. JSON mode writes an ErrorPayload; text mode writes "Error: ...".
func WriteError(w io.Writer, err error, format OutputFormat) {
	if format == OutputJSON {
		_ = writeJSON(w, ErrorPayload{OK: false, Error: err.Error(), Kind: ErrorKind(err)})
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
