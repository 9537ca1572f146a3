// Package decomp provides the low-rank weight representations learned by
// the tensor-regression solvers: the CP/Kruskal form and the Tucker form.
//
// Both variants satisfy the Decomposition interface, which is intentionally
// small: reconstruction to a dense tensor and the inner product against a
// sample tensor. Callers choose the variant at construction time and never
// branch on it afterwards.
package decomp

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/pkg/errors"
)

// Decomposition is the capability shared by the CP and Tucker forms of a
// low-rank weight tensor.
type Decomposition interface {
	// Reconstruct produces the dense weight tensor.
	Reconstruct() (*tensor.Tensor, error)

	// InnerProduct computes the inner product of a sample tensor with the
	// weight tensor without forming the dense weight, which is cheaper
	// whenever the rank is small relative to the product of the mode
	// dimensions.
	InnerProduct(x *tensor.Tensor) (float64, error)

	// Shape returns the dense shape (d_1, ..., d_K) the decomposition
	// reconstructs to.
	Shape() []int

	// NumParameters returns the number of free parameters.
	NumParameters() int
}

// NewRNG builds a deterministic random source from a seed, using the same
// PCG construction throughout the library. A negative seed produces a
// source seeded from the value's bit pattern, still deterministic per seed.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func shapeOfFactors(op string, factors []*mat.Dense) ([]int, error) {
	if len(factors) == 0 {
		return nil, errors.NewValueError(op, "at least one factor matrix is required")
	}
	shape := make([]int, len(factors))
	for k, f := range factors {
		if f == nil {
			return nil, errors.NewValueError(op, "factor matrix must not be nil")
		}
		r, _ := f.Dims()
		shape[k] = r
	}
	return shape, nil
}

// contractModes fully contracts x against one vector per mode, consuming
// the leading mode at each step. vecs[k] must have length x.Shape()[k].
func contractModes(x *tensor.Tensor, vecs [][]float64) float64 {
	shape := x.Shape()
	buf := x.Data()
	for k := range vecs {
		d := shape[k]
		block := len(buf) / d
		next := make([]float64, block)
		for i := 0; i < d; i++ {
			vi := vecs[k][i]
			if vi == 0 {
				continue
			}
			seg := buf[i*block : (i+1)*block]
			for p, s := range seg {
				next[p] += vi * s
			}
		}
		buf = next
	}
	return buf[0]
}
