// Package tensor provides a dense N-dimensional tensor over float64 and the
// multilinear algebra primitives used by the tensor-regression solvers:
// mode-n unfolding and folding, the Khatri-Rao product, n-mode products,
// partial vectorization and reconstruction from CP or Tucker factors.
//
// Data is stored row-major (C order, last axis fastest). Matrices entering
// and leaving the algebra functions are gonum/mat values.
package tensor

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/pkg/errors"
)

// Tensor is a dense multidimensional array backed by a flat row-major
// float64 slice.
type Tensor struct {
	data    []float64
	shape   []int
	strides []int
}

func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func checkShape(op string, shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, errors.NewValueError(op, "shape must be provided")
	}
	size := 1
	for _, s := range shape {
		if s <= 0 {
			return 0, errors.NewValueError(op, "all dimensions must be positive")
		}
		size *= s
	}
	return size, nil
}

// New creates a tensor of the given shape from data. The data slice is
// copied; the tensor never aliases caller-owned memory.
func New(data []float64, shape ...int) (*Tensor, error) {
	size, err := checkShape("tensor.New", shape)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, errors.NewDimensionError("tensor.New", size, len(data), 0)
	}

	owned := make([]float64, size)
	copy(owned, data)

	return &Tensor{
		data:    owned,
		shape:   append([]int(nil), shape...),
		strides: computeStrides(shape),
	}, nil
}

// Zeros creates a zero tensor of the given shape.
func Zeros(shape ...int) (*Tensor, error) {
	size, err := checkShape("tensor.Zeros", shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{
		data:    make([]float64, size),
		shape:   append([]int(nil), shape...),
		strides: computeStrides(shape),
	}, nil
}

// Random creates a tensor with entries drawn i.i.d. from the standard
// normal distribution using the supplied random source. The source is
// required: tensorreg never relies on process-global randomness.
func Random(rng *rand.Rand, shape ...int) (*Tensor, error) {
	if rng == nil {
		return nil, errors.NewValueError("tensor.Random", "random source must not be nil")
	}
	t, err := Zeros(shape...)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t, nil
}

// FromMatrix creates a 2-D tensor from a gonum matrix.
func FromMatrix(m mat.Matrix) *Tensor {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = m.At(i, j)
		}
	}
	return &Tensor{
		data:    data,
		shape:   []int{r, c},
		strides: []int{c, 1},
	}
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Order returns the number of modes (axes).
func (t *Tensor) Order() int {
	return len(t.shape)
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// At returns the element at the given multi-index. It panics if the number
// of indices differs from the tensor order or an index is out of range,
// matching gonum/mat access semantics.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set assigns the element at the given multi-index.
func (t *Tensor) Set(v float64, indices ...int) {
	t.data[t.offset(indices)] = v
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic("tensor: index order mismatch")
	}
	off := 0
	for k, idx := range indices {
		if idx < 0 || idx >= t.shape[k] {
			panic("tensor: index out of range")
		}
		off += idx * t.strides[k]
	}
	return off
}

// Data returns the underlying row-major slice. Callers must treat it as
// read-only; mutating it bypasses the tensor's ownership guarantees.
func (t *Tensor) Data() []float64 {
	return t.data
}

// RawData returns a copy of the underlying data.
func (t *Tensor) RawData() []float64 {
	out := make([]float64, len(t.data))
	copy(out, t.data)
	return out
}

// Copy creates a deep copy of the tensor.
func (t *Tensor) Copy() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{
		data:    data,
		shape:   append([]int(nil), t.shape...),
		strides: append([]int(nil), t.strides...),
	}
}

// Reshape returns a tensor with the same data and a new shape. The total
// element count must be preserved.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	size, err := checkShape("tensor.Reshape", shape)
	if err != nil {
		return nil, err
	}
	if size != len(t.data) {
		return nil, errors.Newf("tensor: cannot reshape tensor of size %d to size %d", len(t.data), size)
	}
	return New(t.data, shape...)
}

// SubTensor returns the i-th slice along the first axis as a view sharing
// the underlying data. The view must be treated as read-only. For a batch
// of shape (N, d_1, ..., d_K) this extracts sample i with shape
// (d_1, ..., d_K).
func (t *Tensor) SubTensor(i int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.NewValueError("tensor.SubTensor", "tensor must have at least 2 modes")
	}
	if i < 0 || i >= t.shape[0] {
		return nil, errors.NewDimensionError("tensor.SubTensor", t.shape[0], i, 0)
	}
	block := t.strides[0]
	return &Tensor{
		data:    t.data[i*block : (i+1)*block],
		shape:   append([]int(nil), t.shape[1:]...),
		strides: append([]int(nil), t.strides[1:]...),
	}, nil
}

// Matrix returns a 2-D tensor as a gonum dense matrix. The returned matrix
// copies the data.
func (t *Tensor) Matrix() (*mat.Dense, error) {
	if len(t.shape) != 2 {
		return nil, errors.NewValueError("tensor.Matrix", "tensor must have exactly 2 modes")
	}
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return mat.NewDense(t.shape[0], t.shape[1], data), nil
}

// SameShape reports whether two tensors have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for k := range a.shape {
		if a.shape[k] != b.shape[k] {
			return false
		}
	}
	return true
}

// EqualApprox reports whether two tensors have the same shape and all
// elements within tol of each other.
func EqualApprox(a, b *Tensor, tol float64) bool {
	if !SameShape(a, b) {
		return false
	}
	for i := range a.data {
		if math.Abs(a.data[i]-b.data[i]) > tol {
			return false
		}
	}
	return true
}
