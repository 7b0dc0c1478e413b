//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatIP. FAISS row labels are the same sequential
// row numbers used by FlatIndex, so both backends are interchangeable behind Index.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
}

// NewFAISSIndex creates an empty FAISS inner-product index.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: (*C.FaissIndex)(unsafe.Pointer(flat)), dimensions: dimensions}, nil
}

// LoadFAISSIndex reads an index written by Save.
func LoadFAISSIndex(path string) (*FAISSIndex, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	var idx *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &idx); ret != 0 {
		return nil, fmt.Errorf("read FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: idx, dimensions: int(C.faiss_Index_d(idx))}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Len returns the number of rows.
func (f *FAISSIndex) Len() int {
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Add appends vectors as one contiguous block.
func (f *FAISSIndex) Add(vectors [][]float32) (int, error) {
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return 0, err
	}
	start := f.Len()
	if len(vectors) == 0 {
		return start, nil
	}
	flat := make([]float32, 0, len(vectors)*f.dimensions)
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	if ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		return 0, fmt.Errorf("add vectors to FAISS index: %s", faissLastError())
	}
	return start, nil
}

// Search runs a single-query FAISS search. FAISS does not order equal scores, so hits
// are re-sorted with the row tie-break shared with FlatIndex.
func (f *FAISSIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, &DimensionMismatchError{Expected: f.dimensions, Actual: len(query)}
	}
	n := f.Len()
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}
	// Ask for every row so equal scores at the k boundary resolve by row.
	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search: %s", faissLastError())
	}
	hits := make([]Hit, 0, n)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		hits = append(hits, Hit{Row: int(label), Score: float64(distances[i])})
	}
	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Reconstruct copies the stored vector for row out of FAISS.
func (f *FAISSIndex) Reconstruct(row int) ([]float32, error) {
	if row < 0 || row >= f.Len() {
		return nil, fmt.Errorf("reconstruct row %d of %d: %w", row, f.Len(), ErrOutOfRange)
	}
	out := make([]float32, f.dimensions)
	if ret := C.faiss_Index_reconstruct(f.index, C.idx_t(row), (*C.float)(unsafe.Pointer(&out[0]))); ret != 0 {
		return nil, fmt.Errorf("FAISS reconstruct: %s", faissLastError())
	}
	return out, nil
}

// Save writes the native FAISS serialization to path.
func (f *FAISSIndex) Save(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("write FAISS index: %s", faissLastError())
	}
	return nil
}

// Close frees the FAISS index.
func (f *FAISSIndex) Close() error {
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
