//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "errors"

var errFAISSUnavailable = errors.New("FAISS not available: build with -tags=faiss and install FAISS library")

// FAISSIndex is a placeholder when FAISS support is not compiled in.
type FAISSIndex struct{}

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

// LoadFAISSIndex returns an error because FAISS is not available.
func LoadFAISSIndex(path string) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Add(vectors [][]float32) (int, error)         { return 0, errFAISSUnavailable }
func (f *FAISSIndex) Search(query []float32, k int) ([]Hit, error) { return nil, errFAISSUnavailable }
func (f *FAISSIndex) Reconstruct(row int) ([]float32, error)       { return nil, errFAISSUnavailable }
func (f *FAISSIndex) Save(path string) error                       { return errFAISSUnavailable }
func (f *FAISSIndex) Len() int                                     { return 0 }
func (f *FAISSIndex) Dimensions() int                              { return 0 }
func (f *FAISSIndex) Type() string                                 { return string(IndexTypeFAISS) }
func (f *FAISSIndex) Close() error                                 { return nil }
