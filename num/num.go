// Package num provides the dense float32 arrays used by the networks.
// Storage is a gorgonia tensor so shapes travel with the data; all the
// arithmetic runs on the backing slice directly.
package num

import (
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// Array is a dense float32 tensor.
type Array struct {
	t    *tensor.Dense
	data []float32
}

// NewArray allocates a zeroed array with the given shape.
func NewArray(dims ...int) *Array {
	if len(dims) == 0 {
		panic("num: array needs at least one dimension")
	}
	data := make([]float32, Prod(dims))
	return &Array{
		t:    tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)),
		data: data,
	}
}

// NewArrayData wraps an existing slice, which must match the shape.
func NewArrayData(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("num: have %d values for shape %v", len(data), dims))
	}
	return &Array{
		t:    tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)),
		data: data,
	}
}

// NewArrayLike allocates a zeroed array with the same shape as a.
func NewArrayLike(a *Array) *Array {
	return NewArray(a.Dims()...)
}

// Dims returns the shape.
func (a *Array) Dims() []int {
	return []int(a.t.Shape())
}

// Size is the total number of elements.
func (a *Array) Size() int {
	return len(a.data)
}

// Data returns the backing slice.
func (a *Array) Data() []float32 {
	return a.data
}

// Tensor returns the underlying dense tensor.
func (a *Array) Tensor() *tensor.Dense {
	return a.t
}

// Reshape returns a view sharing the backing slice with a new shape.
func (a *Array) Reshape(dims ...int) *Array {
	return NewArrayData(a.data, dims...)
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	c := NewArray(a.Dims()...)
	copy(c.data, a.data)
	return c
}

// Fill sets every element to v.
func (a *Array) Fill(v float32) {
	for i := range a.data {
		a.data[i] = v
	}
}

// CopyFrom copies the values of src, which must have the same size.
func (a *Array) CopyFrom(src *Array) {
	if len(a.data) != len(src.data) {
		panic(fmt.Sprintf("num: copy size mismatch %v %v", a.Dims(), src.Dims()))
	}
	copy(a.data, src.data)
}

// Axpy adds alpha*x elementwise.
func (a *Array) Axpy(alpha float32, x *Array) {
	if len(a.data) != len(x.data) {
		panic(fmt.Sprintf("num: axpy size mismatch %v %v", a.Dims(), x.Dims()))
	}
	for i, v := range x.data {
		a.data[i] += alpha * v
	}
}

// Scale multiplies every element by v.
func (a *Array) Scale(v float32) {
	for i := range a.data {
		a.data[i] *= v
	}
}

// Sum returns the sum of all elements.
func (a *Array) Sum() float32 {
	var s float32
	for _, v := range a.data {
		s += v
	}
	return s
}

// Dot returns the inner product with b.
func (a *Array) Dot(b *Array) float32 {
	if len(a.data) != len(b.data) {
		panic(fmt.Sprintf("num: dot size mismatch %v %v", a.Dims(), b.Dims()))
	}
	var s float32
	for i, v := range a.data {
		s += v * b.data[i]
	}
	return s
}

// Norm returns the Euclidean norm.
func (a *Array) Norm() float32 {
	var s float64
	for _, v := range a.data {
		s += float64(v) * float64(v)
	}
	return float32(math.Sqrt(s))
}

// Randn fills the array with normal values of the given mean and stddev.
func (a *Array) Randn(rng *rand.Rand, mean, stddev float32) {
	for i := range a.data {
		a.data[i] = mean + stddev*float32(rng.NormFloat64())
	}
}

// IsFinite reports whether every element is finite.
func (a *Array) IsFinite() bool {
	for _, v := range a.data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// Prod returns the product of the dims.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// SameShape reports whether the two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
