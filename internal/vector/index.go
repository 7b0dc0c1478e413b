// Package vector provides exact inner-product indexes over fixed-dimension vectors.
package vector

// Index stores row-addressed vectors and answers exact top-k inner-product queries.
// Rows are numbered in insertion order starting at 0. There is no single-row removal;
// callers rebuild a fresh index from the rows they keep.
type Index interface {
	// Add appends vectors in order and returns the row of the first one.
	Add(vectors [][]float32) (int, error)
	// Search returns min(k, Len()) hits sorted by score descending, ties by ascending row.
	Search(query []float32, k int) ([]Hit, error)
	// Reconstruct returns a copy of the vector stored at row.
	Reconstruct(row int) ([]float32, error)
	// Save writes the index blob to path.
	Save(path string) error
	Len() int
	Dimensions() int
	Type() string
	Close() error
}

// Hit is a single search hit.
type Hit struct {
	Row   int
	Score float64 // inner product; cosine similarity for unit vectors
}
