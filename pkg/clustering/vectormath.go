// Package clustering implements the online single-pass clusterer (§4.4) and
// the offline batch single-pass clusterer (§4.5), grounded algorithmically
// on original_source/app/services/{online_clustering,clustering_service}.py
// and reexpressed idiomatically in Go.
package clustering

import "math"

// Normalize returns a copy of v scaled to unit L2 norm. A zero-norm vector
// is treated as already unit norm (returned unchanged) to avoid NaNs.
func Normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return append([]float64(nil), v...)
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// CosineDistance computes 1 - cosine_similarity(a, b) on already-normalized
// vectors. Mismatched lengths or a non-finite result are reported via ok=false
// so callers can apply the "treat as missing" edge case.
func CosineDistance(a, b []float64) (dist float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	d := 1 - dot
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// Mean returns the element-wise mean of a set of equal-length vectors.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	for i := range out {
		out[i] /= float64(len(vectors))
	}
	return out
}
