// Package embedding provides image and text embedding into a shared vector space.
package embedding

import "context"

// Embedder maps encoded images (JPEG/PNG bytes) and text into the same D-dimensional space.
// Implementations return unit vectors and are deterministic for identical input.
type Embedder interface {
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
