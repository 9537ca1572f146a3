package regression

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/model"
	"github.com/numanelahi/tensorreg/core/parallel"
	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/decomp"
	"github.com/numanelahi/tensorreg/metrics"
	tensorregErrors "github.com/numanelahi/tensorreg/pkg/errors"
	"github.com/numanelahi/tensorreg/pkg/log"
)

// Parallelization threshold for per-sample work (design-row assembly and
// batch prediction). Batches at or below this size run sequentially.
const sampleParallelThreshold = 512

// KruskalRegressor learns a regression weight tensor constrained to a
// rank-r CP/Kruskal decomposition. For samples X_i of shape (d_1, ..., d_K)
// and scalar labels y_i, Fit minimizes
//
//	sum_i (y_i - <X_i, W>)^2 + reg * sum_k ||A_k||_F^2
//
// over factor matrices A_k of shape (d_k, r) with W = sum_j A_1[:,j] o ...
// o A_K[:,j], by alternating ridge least-squares updates over the factors.
//
// Example:
//
//	reg := regression.NewKruskalRegressor(
//	    regression.WithRank(2),
//	    regression.WithRegularization(1.0),
//	    regression.WithRandomState(42),
//	)
//	err := reg.Fit(X, y) // X: (N, d_1, ..., d_K) batch, y: N labels
//	preds, err := reg.Predict(XTest)
type KruskalRegressor struct {
	state  *model.StateManager
	cfg    config
	logger log.Logger

	// Fitted state.
	decomposition *decomp.CP
	sampleShape   []int
	lossHistory_  []float64
	nIter_        int
	converged_    bool
	termination_  TerminationReason
}

// NewKruskalRegressor creates an unfitted CP tensor regressor. Defaults:
// rank 1, tol 1e-6, 100 sweeps, regularization 1.0, time-based seed.
func NewKruskalRegressor(options ...Option) *KruskalRegressor {
	cfg := defaultConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	r := &KruskalRegressor{
		state: model.NewStateManager(),
		cfg:   cfg,
	}
	r.logger = log.GetLoggerWithName("regression").With(
		log.ModelNameKey, "KruskalRegressor",
	)
	return r
}

// Fit trains the regressor on a sample batch X of shape (N, d_1, ..., d_K)
// and a label vector y of length N. Configuration and shape validation
// happens before any state is mutated; on validation failure the previous
// fitted state (if any) is untouched. A successful call always restarts
// from a fresh random initialization.
func (r *KruskalRegressor) Fit(X *tensor.Tensor, y *mat.VecDense) error {
	return r.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cooperative cancellation, checked once per outer
// sweep. A sweep over a large batch can be costly, so long fits remain
// interruptible without a correctness cost.
func (r *KruskalRegressor) FitContext(ctx context.Context, X *tensor.Tensor, y *mat.VecDense) (err error) {
	defer tensorregErrors.Recover(&err, "KruskalRegressor.Fit")

	startTime := time.Now()

	n, sampleShape, err := validateBatch("KruskalRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := validateCommon(&r.cfg); err != nil {
		return err
	}
	if r.cfg.rank < 1 {
		return tensorregErrors.NewValidationError("rank", "must be a positive integer", r.cfg.rank)
	}
	for _, d := range sampleShape {
		if r.cfg.rank > d {
			return tensorregErrors.NewValidationError("rank", "must not exceed any mode dimension", r.cfg.rank)
		}
	}

	r.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.ShapeKey, sampleShape,
		log.RankKey, r.cfg.rank,
		log.RegularizationKey, r.cfg.reg,
	)

	// Copy inputs at the boundary: the solver must never alias
	// caller-owned arrays.
	Xc := X.Copy()
	yc := mat.VecDenseCopyOf(y)

	r.reset()

	rng := newRNG(r.cfg.seed)
	cp, err := decomp.NewRandomCP(sampleShape, r.cfg.rank, rng)
	if err != nil {
		return err
	}

	// The mode-k unfoldings of each sample are fixed across sweeps;
	// compute them once.
	nModes := len(sampleShape)
	unfoldings := make([][]*mat.Dense, nModes)
	for k := 0; k < nModes; k++ {
		unfoldings[k] = make([]*mat.Dense, n)
		for i := 0; i < n; i++ {
			xi, err := Xc.SubTensor(i)
			if err != nil {
				return err
			}
			unfoldings[k][i], err = tensor.Unfold(xi, k)
			if err != nil {
				return err
			}
		}
	}

	var (
		lastDesign *mat.Dense
		lastCoef   *mat.VecDense
	)

	for sweep := 1; sweep <= r.cfg.maxIter; sweep++ {
		if ctx != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		}

		for k := 0; k < nModes; k++ {
			design, err := r.assembleModeDesign(cp, unfoldings[k], k, n, sampleShape[k])
			if err != nil {
				return err
			}
			coef, err := ridgeSolve(design, yc, r.cfg.reg, "cp_factor_update", sweep)
			if err != nil {
				return err
			}

			factor := mat.NewDense(sampleShape[k], r.cfg.rank, nil)
			for p := 0; p < sampleShape[k]; p++ {
				for j := 0; j < r.cfg.rank; j++ {
					factor.Set(p, j, coef.AtVec(p*r.cfg.rank+j))
				}
			}
			if err := tensorregErrors.CheckMatrixFinite("cp_factor_update", factor, sampleShape[k], r.cfg.rank, sweep); err != nil {
				r.logger.Error("Fit aborted: factors diverged",
					log.OperationKey, log.OperationFit,
					log.SweepKey, sweep,
				)
				return err
			}
			cp.Factors[k] = factor
			lastDesign, lastCoef = design, coef
		}

		// Regularized training loss, exact for the current factors since
		// the final block update's design is still valid.
		preds := mat.NewVecDense(n, nil)
		preds.MulVec(lastDesign, lastCoef)
		loss := residualSumSquares(yc, preds)
		for _, f := range cp.Factors {
			loss += r.cfg.reg * squaredFrobNorm(f)
		}

		r.lossHistory_ = append(r.lossHistory_, loss)
		r.nIter_ = sweep

		if r.cfg.verbose {
			r.logger.Info("Sweep completed",
				log.SweepKey, sweep,
				log.LossKey, loss,
			)
		} else {
			r.logger.Debug("Sweep completed",
				log.SweepKey, sweep,
				log.LossKey, loss,
			)
		}

		if sweep > 1 {
			prev := r.lossHistory_[len(r.lossHistory_)-2]
			if relativeChange(prev, loss) < r.cfg.tol {
				r.converged_ = true
				break
			}
		}
	}

	if r.converged_ {
		r.termination_ = TerminationConverged
	} else {
		r.termination_ = TerminationMaxIter
		tensorregErrors.Warn(tensorregErrors.NewConvergenceWarning("KruskalRegressor", r.nIter_, "maximum number of sweeps reached"))
	}

	r.decomposition = cp
	r.sampleShape = sampleShape
	r.state.SetFitted()
	r.state.SetDimensions(sampleShape, n)

	r.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.SamplesKey, n,
		log.SweepKey, r.nIter_,
		log.TerminationKey, r.termination_.String(),
	)

	return nil
}

// assembleModeDesign builds the N x (d_k * r) design matrix for the mode-k
// factor update: row i is the row-major flattening of X_i's mode-k
// unfolding multiplied by the Khatri-Rao product of the remaining factors.
func (r *KruskalRegressor) assembleModeDesign(cp *decomp.CP, unfolded []*mat.Dense, k, n, dk int) (*mat.Dense, error) {
	var kr *mat.Dense
	if len(cp.Factors) == 1 {
		// Single feature mode: the Khatri-Rao over the remaining factors
		// degenerates to a row of ones.
		ones := make([]float64, r.cfg.rank)
		for j := range ones {
			ones[j] = 1
		}
		kr = mat.NewDense(1, r.cfg.rank, ones)
	} else {
		var err error
		kr, err = tensor.KhatriRao(cp.Factors, k)
		if err != nil {
			return nil, err
		}
	}

	design := mat.NewDense(n, dk*r.cfg.rank, nil)
	parallel.ParallelizeWithThreshold(n, sampleParallelThreshold, func(start, end int) {
		var g mat.Dense
		for i := start; i < end; i++ {
			g.Reset()
			g.Mul(unfolded[i], kr)
			row := design.RawRowView(i)
			for p := 0; p < dk; p++ {
				for j := 0; j < r.cfg.rank; j++ {
					row[p*r.cfg.rank+j] = g.At(p, j)
				}
			}
		}
	})
	return design, nil
}

// Predict computes <X_i, W> for every sample in the batch using the fitted
// decomposition, without forming the dense weight tensor.
func (r *KruskalRegressor) Predict(X *tensor.Tensor) (_ *mat.VecDense, err error) {
	defer tensorregErrors.Recover(&err, "KruskalRegressor.Predict")

	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("KruskalRegressor", "Predict")
	}
	if X == nil {
		return nil, tensorregErrors.NewModelError("KruskalRegressor.Predict", "empty data", tensorregErrors.ErrEmptyData)
	}
	shape := X.Shape()
	if len(shape) < 2 || !sameDims(shape[1:], r.sampleShape) {
		return nil, tensorregErrors.NewShapeError("KruskalRegressor.Predict", r.sampleShape, shape[1:])
	}
	n := shape[0]

	r.logger.Debug("Prediction started",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, n,
	)

	preds := mat.NewVecDense(n, nil)
	var (
		errMu    sync.Mutex
		firstErr error
	)
	parallel.ParallelizeWithThreshold(n, sampleParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi, subErr := X.SubTensor(i)
			if subErr == nil {
				var v float64
				v, subErr = r.decomposition.InnerProduct(xi)
				if subErr == nil {
					preds.SetVec(i, v)
					continue
				}
			}
			errMu.Lock()
			if firstErr == nil {
				firstErr = subErr
			}
			errMu.Unlock()
			return
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}

	r.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, n,
	)
	return preds, nil
}

// Score returns the coefficient of determination R² of the predictions on
// X against y.
func (r *KruskalRegressor) Score(X *tensor.Tensor, y *mat.VecDense) (_ float64, err error) {
	defer tensorregErrors.Recover(&err, "KruskalRegressor.Score")

	preds, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, preds)
}

// Decomposition returns the fitted CP decomposition. The caller must treat
// it as read-only.
func (r *KruskalRegressor) Decomposition() (*decomp.CP, error) {
	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("KruskalRegressor", "Decomposition")
	}
	return r.decomposition, nil
}

// WeightTensor reconstructs and returns the dense weight tensor of shape
// (d_1, ..., d_K), for inspection or visualization.
func (r *KruskalRegressor) WeightTensor() (*tensor.Tensor, error) {
	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("KruskalRegressor", "WeightTensor")
	}
	return r.decomposition.Reconstruct()
}

// LossHistory returns the regularized training loss after each sweep.
func (r *KruskalRegressor) LossHistory() []float64 {
	return append([]float64(nil), r.lossHistory_...)
}

// NIterations returns the number of completed outer sweeps.
func (r *KruskalRegressor) NIterations() int {
	return r.nIter_
}

// Converged reports whether the last fit met the convergence tolerance.
func (r *KruskalRegressor) Converged() bool {
	return r.converged_
}

// TerminationReason reports why the last fit stopped.
func (r *KruskalRegressor) TerminationReason() TerminationReason {
	return r.termination_
}

// IsFitted returns whether the model has been fitted.
func (r *KruskalRegressor) IsFitted() bool {
	return r.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (r *KruskalRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"rank":           r.cfg.rank,
		"tol":            r.cfg.tol,
		"max_iterations": r.cfg.maxIter,
		"regularization": r.cfg.reg,
		"random_state":   r.cfg.seed,
		"verbose":        r.cfg.verbose,
	}
}

func (r *KruskalRegressor) reset() {
	r.decomposition = nil
	r.sampleShape = nil
	r.lossHistory_ = nil
	r.nIter_ = 0
	r.converged_ = false
	r.termination_ = TerminationNone
	r.state.Reset()
}

func sameDims(a, b []int) bool {
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
