package vector

import "math"

// NormEpsilon guards normalization against zero-length vectors.
const NormEpsilon = 1e-12

// InnerProduct returns the inner product of two vectors (cosine similarity for unit vectors).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns a copy of x divided by max(norm, NormEpsilon).
func Normalize(x []float32) []float32 {
	norm := math.Max(L2Norm(x), NormEpsilon)
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
