package valueobjects

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroVector is returned when normalizing a vector with no magnitude.
var ErrZeroVector = errors.New("cannot normalize a zero vector")

// ErrDimensionMismatch is returned when two vectors of different lengths are compared.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Vector is an immutable embedding vector.
type Vector struct {
	values []float32
}

// NewVector copies values into a Vector.
func NewVector(values []float32) (Vector, error) {
	if len(values) == 0 {
		return Vector{}, errors.New("vector cannot be empty")
	}
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Vector{}, fmt.Errorf("vector component %d is not finite", i)
		}
	}
	cp := make([]float32, len(values))
	copy(cp, values)
	return Vector{values: cp}, nil
}

// NormalizeVector scales values to unit L2 length.
func NormalizeVector(values []float32) (Vector, error) {
	v, err := NewVector(values)
	if err != nil {
		return Vector{}, err
	}
	return v.Normalize()
}

// Dimension returns the number of components.
func (v Vector) Dimension() int {
	return len(v.values)
}

// Values returns a copy of the components.
func (v Vector) Values() []float32 {
	cp := make([]float32, len(v.values))
	copy(cp, v.values)
	return cp
}

// Norm returns the L2 length.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.values {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
func (v Vector) Normalize() (Vector, error) {
	norm := v.Norm()
	if norm == 0 {
		return Vector{}, ErrZeroVector
	}
	out := make([]float32, len(v.values))
	for i, x := range v.values {
		out[i] = float32(float64(x) / norm)
	}
	return Vector{values: out}, nil
}

// Dot returns the dot product. For unit vectors this is the cosine similarity.
func (v Vector) Dot(other Vector) (float64, error) {
	if len(v.values) != len(other.values) {
		return 0, ErrDimensionMismatch
	}
	return dot(v.values, other.values), nil
}

// IsZero reports whether the vector is unset.
func (v Vector) IsZero() bool {
	return len(v.values) == 0
}

// Centroid averages vectors of the same dimension and normalizes the result.
func Centroid(vectors []Vector) (Vector, error) {
	if len(vectors) == 0 {
		return Vector{}, errors.New("centroid of no vectors")
	}
	dim := vectors[0].Dimension()
	sum := make([]float64, dim)
	for _, v := range vectors {
		if v.Dimension() != dim {
			return Vector{}, ErrDimensionMismatch
		}
		for i, x := range v.values {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / float64(len(vectors)))
	}
	return NormalizeVector(out)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
