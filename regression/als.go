// Package regression implements low-rank tensor regression: estimators that
// map tensor-valued samples to scalar labels through a weight tensor
// constrained to a CP/Kruskal or Tucker decomposition, fitted by
// alternating least squares (ALS) with ridge regularization.
//
// Each outer sweep updates one decomposition block at a time in a fixed
// order (CP: every factor matrix; Tucker: the core, then every factor).
// Holding the other blocks fixed, a block update is an ordinary ridge
// least-squares problem solved in closed form, so the regularized training
// loss never increases across sweeps.
package regression

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/pkg/errors"
)

// TerminationReason reports why an ALS fit stopped.
type TerminationReason int

const (
	// TerminationNone means the model has not been fitted.
	TerminationNone TerminationReason = iota
	// TerminationConverged means the relative loss change of the final
	// sweep dropped below the configured tolerance.
	TerminationConverged
	// TerminationMaxIter means the sweep budget was exhausted before the
	// tolerance was met. This is a reported, non-fatal outcome.
	TerminationMaxIter
)

// String returns the log-friendly name of the termination reason.
func (t TerminationReason) String() string {
	switch t {
	case TerminationConverged:
		return "converged"
	case TerminationMaxIter:
		return "max_iterations"
	default:
		return "none"
	}
}

// condWarnThreshold is the normal-equations condition number above which a
// NumericalInstabilityWarning is emitted.
const condWarnThreshold = 1e12

// newRNG builds the per-fit random source. Non-negative seeds give
// reproducible initialization; negative seeds fall back to the clock.
func newRNG(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	}
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now^0xdeadbeef))
}

// validateCommon checks the hyperparameters shared by both regressors.
func validateCommon(cfg *config) error {
	if cfg.tol <= 0 {
		return errors.NewValidationError("tol", "must be strictly positive", cfg.tol)
	}
	if cfg.maxIter < 1 {
		return errors.NewValidationError("max_iterations", "must be a positive integer", cfg.maxIter)
	}
	if cfg.reg < 0 {
		return errors.NewValidationError("regularization", "must be non-negative", cfg.reg)
	}
	return nil
}

// validateBatch checks the sample batch against the label vector and
// returns the sample count and per-sample shape.
func validateBatch(op string, X *tensor.Tensor, y *mat.VecDense) (int, []int, error) {
	if X == nil || y == nil {
		return 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	shape := X.Shape()
	if len(shape) < 2 {
		return 0, nil, errors.NewValueError(op, "sample batch must have at least one feature mode")
	}
	n := shape[0]
	if y.Len() != n {
		return 0, nil, errors.NewDimensionError(op, n, y.Len(), 0)
	}
	return n, shape[1:], nil
}

// ridgeSolve solves min_w ||Dw - y||^2 + reg*||w||^2 through the normal
// equations (D^T D + reg*I) w = D^T y, factorized by Cholesky. Extreme
// condition numbers are surfaced as a NumericalInstabilityWarning; the
// solve proceeds. With reg == 0 the problem is solved directly by QR, and a
// singular design is a hard error.
func ridgeSolve(design *mat.Dense, y *mat.VecDense, reg float64, op string, sweep int) (*mat.VecDense, error) {
	_, p := design.Dims()

	if reg == 0 {
		var w mat.VecDense
		if err := w.SolveVec(design, y); err != nil {
			return nil, errors.NewModelError(op, "singular system without regularization", errors.ErrSingularMatrix)
		}
		return &w, nil
	}

	var dtd mat.Dense
	dtd.Mul(design.T(), design)

	gram := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := dtd.At(i, j)
			if i == j {
				v += reg
			}
			gram.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(gram) {
		return nil, errors.NewModelError(op, "normal equations not positive definite", errors.ErrSingularMatrix)
	}
	errors.WarnIfIllConditioned(op, chol.Cond(), condWarnThreshold, sweep)

	var dty mat.VecDense
	dty.MulVec(design.T(), y)

	w := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(w, &dty); err != nil {
		return nil, errors.NewModelError(op, "normal equations solve failed", err)
	}
	return w, nil
}

// squaredFrobNorm returns the squared Frobenius norm of a matrix.
func squaredFrobNorm(m mat.Matrix) float64 {
	n := mat.Norm(m, 2)
	return n * n
}

// relativeChange returns |prev-cur| scaled by |prev|, guarding against a
// zero denominator.
func relativeChange(prev, cur float64) float64 {
	denom := math.Abs(prev)
	if denom == 0 {
		denom = 1
	}
	return math.Abs(prev-cur) / denom
}

// residualSumSquares returns sum((y - preds)^2).
func residualSumSquares(y, preds *mat.VecDense) float64 {
	var ssr float64
	for i := 0; i < y.Len(); i++ {
		d := y.AtVec(i) - preds.AtVec(i)
		ssr += d * d
	}
	return ssr
}
