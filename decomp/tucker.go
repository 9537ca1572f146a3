package decomp

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/pkg/errors"
)

// Tucker is a Tucker decomposition: a core tensor of shape (r_1, ..., r_K)
// transformed along mode k by a factor matrix of shape (d_k, r_k).
type Tucker struct {
	Core    *tensor.Tensor
	Factors []*mat.Dense

	shape []int
	ranks []int
}

var _ Decomposition = (*Tucker)(nil)

// NewTucker validates and wraps an existing core and factor matrices.
// Factor k's column count must equal core dimension k.
func NewTucker(core *tensor.Tensor, factors []*mat.Dense) (*Tucker, error) {
	if core == nil {
		return nil, errors.NewValueError("decomp.NewTucker", "core tensor must not be nil")
	}
	shape, err := shapeOfFactors("decomp.NewTucker", factors)
	if err != nil {
		return nil, err
	}
	ranks := core.Shape()
	if len(factors) != len(ranks) {
		return nil, errors.NewDimensionError("decomp.NewTucker", len(ranks), len(factors), 0)
	}
	for k, f := range factors {
		_, c := f.Dims()
		if c != ranks[k] {
			return nil, errors.NewDimensionError("decomp.NewTucker", ranks[k], c, 1)
		}
	}
	return &Tucker{Core: core, Factors: factors, shape: shape, ranks: ranks}, nil
}

// NewRandomTucker creates a Tucker decomposition for the given dense shape
// and multilinear ranks, with core and factor entries drawn from the
// standard normal distribution.
func NewRandomTucker(shape, ranks []int, rng *rand.Rand) (*Tucker, error) {
	if rng == nil {
		return nil, errors.NewValueError("decomp.NewRandomTucker", "random source must not be nil")
	}
	if len(shape) == 0 || len(shape) != len(ranks) {
		return nil, errors.NewValidationError("ranks", "must provide one rank per mode", ranks)
	}
	for k, r := range ranks {
		if r < 1 {
			return nil, errors.NewValidationError("ranks", "every rank must be a positive integer", ranks)
		}
		if shape[k] <= 0 {
			return nil, errors.NewValueError("decomp.NewRandomTucker", "all dimensions must be positive")
		}
		if r > shape[k] {
			return nil, errors.NewValidationError("ranks", "each rank must not exceed its mode dimension", ranks)
		}
	}

	core, err := tensor.Random(rng, ranks...)
	if err != nil {
		return nil, err
	}
	factors := make([]*mat.Dense, len(shape))
	for k, d := range shape {
		data := make([]float64, d*ranks[k])
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		factors[k] = mat.NewDense(d, ranks[k], data)
	}
	return NewTucker(core, factors)
}

// Ranks returns a copy of the multilinear ranks.
func (t *Tucker) Ranks() []int {
	return append([]int(nil), t.ranks...)
}

// Shape implements Decomposition.Shape.
func (t *Tucker) Shape() []int {
	return append([]int(nil), t.shape...)
}

// NumParameters implements Decomposition.NumParameters.
func (t *Tucker) NumParameters() int {
	n := t.Core.Size()
	for k, d := range t.shape {
		n += d * t.ranks[k]
	}
	return n
}

// Reconstruct implements Decomposition.Reconstruct.
func (t *Tucker) Reconstruct() (*tensor.Tensor, error) {
	return tensor.ReconstructTucker(t.Core, t.Factors)
}

// InnerProduct implements Decomposition.InnerProduct. The sample is
// projected into the core space by every factor transpose, then contracted
// with the core: <X, G x1 U_1 ... xK U_K> = <X x1 U_1^T ... xK U_K^T, G>.
func (t *Tucker) InnerProduct(x *tensor.Tensor) (float64, error) {
	if x == nil {
		return 0, errors.NewValueError("Tucker.InnerProduct", "sample tensor must not be nil")
	}
	xs := x.Shape()
	if len(xs) != len(t.shape) {
		return 0, errors.NewShapeError("Tucker.InnerProduct", t.shape, xs)
	}
	for k := range xs {
		if xs[k] != t.shape[k] {
			return 0, errors.NewShapeError("Tucker.InnerProduct", t.shape, xs)
		}
	}

	projected, err := ProjectToCore(x, t.Factors)
	if err != nil {
		return 0, err
	}
	return tensor.Inner(projected, t.Core)
}

// ProjectToCore contracts a sample tensor with the transpose of every
// factor matrix, producing a tensor shaped like the core. It is shared by
// InnerProduct and the ALS core update.
func ProjectToCore(x *tensor.Tensor, factors []*mat.Dense) (*tensor.Tensor, error) {
	out := x
	var err error
	for k, f := range factors {
		out, err = tensor.ModeDot(out, f.T(), k)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy of the decomposition.
func (t *Tucker) Clone() *Tucker {
	factors := make([]*mat.Dense, len(t.Factors))
	for k, f := range t.Factors {
		factors[k] = mat.DenseCopyOf(f)
	}
	return &Tucker{
		Core:    t.Core.Copy(),
		Factors: factors,
		shape:   append([]int(nil), t.shape...),
		ranks:   append([]int(nil), t.ranks...),
	}
}
