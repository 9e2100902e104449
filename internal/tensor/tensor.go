// Package tensor provides the dense float64 tensor shared by the convolution
// engine, the layers and the models.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a row-major n-dimensional array.
// Views returned by Reshape and Sample share storage with their parent.
type Tensor struct {
	shape []int
	data  []float64
}

// New allocates a zero-filled tensor. It panics on a non-positive dimension.
func New(shape ...int) *Tensor {
	n := numel(shape)
	if n <= 0 {
		panic(fmt.Sprintf("tensor: invalid shape %v", shape))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: make([]float64, n)}
}

// FromSlice wraps data (without copying) in a tensor of the given shape.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	n := numel(shape)
	if n <= 0 {
		return nil, errors.Errorf("tensor: invalid shape %v", shape)
	}
	if n != len(data) {
		return nil, errors.Errorf("tensor: shape %v needs %d values, got %d", shape, n, len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

func numel(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Shape returns a copy of the dimensions.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data returns the backing slice.
func (t *Tensor) Data() []float64 { return t.data }

// At returns the element at the given index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index %v for shape %v", idx, t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off = off*t.shape[i] + v
	}
	return off
}

// Reshape returns a view with a new shape. One dimension may be -1 and is
// inferred from the others.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	shape = append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d <= 0:
			return nil, errors.Errorf("tensor: cannot reshape %v to %v", t.shape, shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if len(t.data)%known != 0 {
			return nil, errors.Errorf("tensor: cannot reshape %v to %v", t.shape, shape)
		}
		shape[infer] = len(t.data) / known
	}
	return FromSlice(t.data, shape...)
}

// Sample returns a view of element n along the leading dimension.
// The view is capacity-limited so appends never reach a neighbour.
func (t *Tensor) Sample(n int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.Errorf("tensor: cannot index sample of rank-%d tensor", len(t.shape))
	}
	if n < 0 || n >= t.shape[0] {
		return nil, errors.Errorf("tensor: sample %d out of range [0,%d)", n, t.shape[0])
	}
	size := len(t.data) / t.shape[0]
	lo, hi := n*size, (n+1)*size
	return &Tensor{shape: append([]int(nil), t.shape[1:]...), data: t.data[lo:hi:hi]}, nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.Shape(), data: append([]float64(nil), t.data...)}
}

// Apply replaces every element x with fn(x) and returns t.
func (t *Tensor) Apply(fn func(float64) float64) *Tensor {
	for i, v := range t.data {
		t.data[i] = fn(v)
	}
	return t
}

// Matrix returns a gonum view of a rank-2 tensor sharing storage.
func (t *Tensor) Matrix() (*mat.Dense, error) {
	if len(t.shape) != 2 {
		return nil, errors.Errorf("tensor: matrix view needs rank 2, got shape %v", t.shape)
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data), nil
}

// String describes the tensor by shape.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}

// SameShape reports whether a and b have identical dimensions.
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
