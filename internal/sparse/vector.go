// Package sparse holds the sparse term-weight vector used by the index and
// the retriever.
package sparse

import "math"

// Epsilon is added to the L2 norm before dividing so that an all-zero vector
// never divides by zero.
const Epsilon = 1e-8

// Vector stores only non-zero components as parallel arrays. Indices are
// strictly increasing vocabulary ids; Norm is the L2 norm of the raw weights
// before normalisation.
type Vector struct {
	Indices []int32   `json:"indices"`
	Weights []float64 `json:"weights"`
	Norm    float64   `json:"norm"`
}

// Len returns the number of stored components.
func (v Vector) Len() int { return len(v.Indices) }

// Valid reports whether Indices is strictly ascending and parallel to Weights.
func (v Vector) Valid() bool {
	if len(v.Indices) != len(v.Weights) {
		return false
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i] <= v.Indices[i-1] {
			return false
		}
	}
	return true
}

// Normalize records the L2 norm of the weights and divides every weight by
// (norm + Epsilon) in place. An empty vector keeps norm 0.
func (v *Vector) Normalize() {
	if len(v.Weights) == 0 {
		v.Norm = 0
		return
	}
	var sum float64
	for _, w := range v.Weights {
		sum += w * w
	}
	v.Norm = math.Sqrt(sum)
	d := v.Norm + Epsilon
	for i := range v.Weights {
		v.Weights[i] /= d
	}
}

// Cosine returns the dot product of two normalised vectors by merge-joining
// their ascending id arrays. It never materialises a dense vector.
func Cosine(a, b Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			dot += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return dot
}
