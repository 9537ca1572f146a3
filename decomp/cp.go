package decomp

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/pkg/errors"
)

// CP is a CP/Kruskal decomposition: a weight tensor expressed as the sum of
// rank r outer products. Factor k has shape (d_k, r). Weights holds one
// scalar per component; nil means unit weights.
type CP struct {
	Factors []*mat.Dense
	Weights []float64

	shape []int
	rank  int
}

var _ Decomposition = (*CP)(nil)

// NewCP validates and wraps existing factor matrices. All factors must
// share the same column count; Weights, if non-nil, must have one entry per
// component.
func NewCP(factors []*mat.Dense, weights []float64) (*CP, error) {
	shape, err := shapeOfFactors("decomp.NewCP", factors)
	if err != nil {
		return nil, err
	}
	_, rank := factors[0].Dims()
	for _, f := range factors {
		if _, c := f.Dims(); c != rank {
			return nil, errors.NewDimensionError("decomp.NewCP", rank, c, 1)
		}
	}
	if weights != nil && len(weights) != rank {
		return nil, errors.NewDimensionError("decomp.NewCP", rank, len(weights), 0)
	}
	return &CP{Factors: factors, Weights: weights, shape: shape, rank: rank}, nil
}

// NewRandomCP creates a rank-r CP decomposition for the given dense shape
// with every factor entry drawn from the standard normal distribution.
func NewRandomCP(shape []int, rank int, rng *rand.Rand) (*CP, error) {
	if rank < 1 {
		return nil, errors.NewValidationError("rank", "must be a positive integer", rank)
	}
	if rng == nil {
		return nil, errors.NewValueError("decomp.NewRandomCP", "random source must not be nil")
	}
	if len(shape) == 0 {
		return nil, errors.NewValueError("decomp.NewRandomCP", "shape must be provided")
	}

	factors := make([]*mat.Dense, len(shape))
	for k, d := range shape {
		if d <= 0 {
			return nil, errors.NewValueError("decomp.NewRandomCP", "all dimensions must be positive")
		}
		data := make([]float64, d*rank)
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		factors[k] = mat.NewDense(d, rank, data)
	}
	return NewCP(factors, nil)
}

// Rank returns the number of rank-one components.
func (c *CP) Rank() int {
	return c.rank
}

// Shape implements Decomposition.Shape.
func (c *CP) Shape() []int {
	return append([]int(nil), c.shape...)
}

// NumParameters implements Decomposition.NumParameters.
func (c *CP) NumParameters() int {
	n := 0
	for _, d := range c.shape {
		n += d * c.rank
	}
	if c.Weights != nil {
		n += c.rank
	}
	return n
}

// Reconstruct implements Decomposition.Reconstruct.
func (c *CP) Reconstruct() (*tensor.Tensor, error) {
	return tensor.ReconstructCP(c.Factors, c.Weights)
}

// InnerProduct implements Decomposition.InnerProduct. It expands
// <X, W> = sum_j w_j * (X contracted with the j-th column of every factor),
// costing O(r * prod d_k) without materializing the dense weight.
func (c *CP) InnerProduct(x *tensor.Tensor) (float64, error) {
	if x == nil {
		return 0, errors.NewValueError("CP.InnerProduct", "sample tensor must not be nil")
	}
	xs := x.Shape()
	if len(xs) != len(c.shape) {
		return 0, errors.NewShapeError("CP.InnerProduct", c.shape, xs)
	}
	for k := range xs {
		if xs[k] != c.shape[k] {
			return 0, errors.NewShapeError("CP.InnerProduct", c.shape, xs)
		}
	}

	vecs := make([][]float64, len(c.Factors))
	total := 0.0
	for j := 0; j < c.rank; j++ {
		for k, f := range c.Factors {
			d := c.shape[k]
			col := make([]float64, d)
			for i := 0; i < d; i++ {
				col[i] = f.At(i, j)
			}
			vecs[k] = col
		}
		term := contractModes(x, vecs)
		if c.Weights != nil {
			term *= c.Weights[j]
		}
		total += term
	}
	return total, nil
}

// Clone returns a deep copy of the decomposition.
func (c *CP) Clone() *CP {
	factors := make([]*mat.Dense, len(c.Factors))
	for k, f := range c.Factors {
		factors[k] = mat.DenseCopyOf(f)
	}
	var weights []float64
	if c.Weights != nil {
		weights = append([]float64(nil), c.Weights...)
	}
	return &CP{Factors: factors, Weights: weights, shape: append([]int(nil), c.shape...), rank: c.rank}
}
