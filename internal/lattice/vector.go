package lattice

import "math"

// Scalar is the coordinate type of a lattice vector.
type Scalar interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Vec is a 2D coordinate pair. The zero value is the origin.
type Vec[T Scalar] [2]T

// NewVec constructs a vector from its components.
func NewVec[T Scalar](x, y T) Vec[T] {
	return Vec[T]{x, y}
}

// At returns component i (0 = x, 1 = y).
func (v Vec[T]) At(i int) T {
	return v[i]
}

// Set overwrites component i.
func (v *Vec[T]) Set(i int, val T) {
	v[i] = val
}

// X returns the first component.
func (v Vec[T]) X() T { return v[0] }

// Y returns the second component.
func (v Vec[T]) Y() T { return v[1] }

// Add returns the component-wise sum.
func (v Vec[T]) Add(o Vec[T]) Vec[T] {
	return Vec[T]{v[0] + o[0], v[1] + o[1]}
}

// NormSquared returns x² + y² in the vector's own scalar type.
func (v Vec[T]) NormSquared() T {
	return v[0]*v[0] + v[1]*v[1]
}

// Norm returns the Euclidean length.
func (v Vec[T]) Norm() float64 {
	return math.Sqrt(float64(v.NormSquared()))
}

// IsOrigin reports whether both components are zero.
func (v Vec[T]) IsOrigin() bool {
	return v[0] == 0 && v[1] == 0
}
