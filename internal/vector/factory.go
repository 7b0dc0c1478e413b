package vector

import "fmt"

// IndexType represents the backing implementation of an Index.
type IndexType string

const (
	// IndexTypeFlat is the pure-Go exact index.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS is FAISS IndexFlatIP. Requires -tags=faiss and libfaiss_c.
	IndexTypeFAISS IndexType = "faiss"
)

// New creates an empty index of the given type. An empty type means flat.
func New(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		idx, err := NewFlatIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		idx, err := NewFAISSIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// Build creates an index of the given type holding exactly vectors, in order.
// The index is closed again if any vector is rejected.
func Build(indexType string, dimensions int, vectors [][]float32) (Index, error) {
	idx, err := New(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return idx, nil
	}
	if _, err := idx.Add(vectors); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// Load reads an index blob of the given type from path.
func Load(indexType string, path string) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		idx, err := LoadFlatIndex(path)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		idx, err := LoadFAISSIndex(path)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// IsFAISSAvailable reports whether FAISS support is compiled in (-tags=faiss).
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
