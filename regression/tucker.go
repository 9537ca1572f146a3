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

// TuckerRegressor learns a regression weight tensor constrained to a Tucker
// decomposition: a core tensor of shape (r_1, ..., r_K) multiplied along
// every mode by a factor matrix A_k of shape (d_k, r_k). Fit minimizes
//
//	sum_i (y_i - <X_i, W>)^2 + reg * (||G||_F^2 + sum_k ||A_k||_F^2)
//
// by alternating ridge least-squares updates: the core first, then each
// factor in mode order, every sweep.
//
// The per-mode ranks come from WithRanks; when unset, WithRank (default 1)
// is used for every mode.
type TuckerRegressor struct {
	state  *model.StateManager
	cfg    config
	logger log.Logger

	// Fitted state.
	decomposition *decomp.Tucker
	sampleShape   []int
	ranks         []int
	lossHistory_  []float64
	nIter_        int
	converged_    bool
	termination_  TerminationReason
}

// NewTuckerRegressor creates an unfitted Tucker tensor regressor.
func NewTuckerRegressor(options ...Option) *TuckerRegressor {
	cfg := defaultConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	r := &TuckerRegressor{
		state: model.NewStateManager(),
		cfg:   cfg,
	}
	r.logger = log.GetLoggerWithName("regression").With(
		log.ModelNameKey, "TuckerRegressor",
	)
	return r
}

// Fit trains the regressor on a sample batch X of shape (N, d_1, ..., d_K)
// and a label vector y of length N.
func (r *TuckerRegressor) Fit(X *tensor.Tensor, y *mat.VecDense) error {
	return r.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cooperative cancellation, checked once per outer
// sweep.
func (r *TuckerRegressor) FitContext(ctx context.Context, X *tensor.Tensor, y *mat.VecDense) (err error) {
	defer tensorregErrors.Recover(&err, "TuckerRegressor.Fit")

	startTime := time.Now()

	n, sampleShape, err := validateBatch("TuckerRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := validateCommon(&r.cfg); err != nil {
		return err
	}
	ranks, err := resolveRanks(&r.cfg, sampleShape)
	if err != nil {
		return err
	}

	r.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.ShapeKey, sampleShape,
		log.RankKey, ranks,
		log.RegularizationKey, r.cfg.reg,
	)

	Xc := X.Copy()
	yc := mat.VecDenseCopyOf(y)

	r.reset()

	rng := newRNG(r.cfg.seed)
	tk, err := decomp.NewRandomTucker(sampleShape, ranks, rng)
	if err != nil {
		return err
	}

	nModes := len(sampleShape)
	samples := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		samples[i], err = Xc.SubTensor(i)
		if err != nil {
			return err
		}
	}

	coreSize := 1
	for _, rk := range ranks {
		coreSize *= rk
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

		// Core update: <X_i, G x_k A_k> = <ProjectToCore(X_i), G>, so the
		// design row for sample i is its projection onto the factor
		// subspaces, vectorized.
		design, err := assembleCoreDesign(samples, tk.Factors, n, coreSize)
		if err != nil {
			return err
		}
		coef, err := ridgeSolve(design, yc, r.cfg.reg, "tucker_core_update", sweep)
		if err != nil {
			return err
		}
		coreData := make([]float64, coreSize)
		for p := range coreData {
			coreData[p] = coef.AtVec(p)
		}
		if err := tensorregErrors.CheckFinite("tucker_core_update", coreData, sweep); err != nil {
			r.logger.Error("Fit aborted: core diverged",
				log.OperationKey, log.OperationFit,
				log.SweepKey, sweep,
			)
			return err
		}
		core, err := tensor.New(coreData, ranks...)
		if err != nil {
			return err
		}
		tk.Core = core
		lastDesign, lastCoef = design, coef

		// Factor updates in mode order.
		for k := 0; k < nModes; k++ {
			design, err := assembleFactorDesign(samples, tk, k, n, sampleShape[k], ranks[k])
			if err != nil {
				return err
			}
			coef, err := ridgeSolve(design, yc, r.cfg.reg, "tucker_factor_update", sweep)
			if err != nil {
				return err
			}

			factor := mat.NewDense(sampleShape[k], ranks[k], nil)
			for p := 0; p < sampleShape[k]; p++ {
				for j := 0; j < ranks[k]; j++ {
					factor.Set(p, j, coef.AtVec(p*ranks[k]+j))
				}
			}
			if err := tensorregErrors.CheckMatrixFinite("tucker_factor_update", factor, sampleShape[k], ranks[k], sweep); err != nil {
				r.logger.Error("Fit aborted: factors diverged",
					log.OperationKey, log.OperationFit,
					log.SweepKey, sweep,
				)
				return err
			}
			tk.Factors[k] = factor
			lastDesign, lastCoef = design, coef
		}

		preds := mat.NewVecDense(n, nil)
		preds.MulVec(lastDesign, lastCoef)
		loss := residualSumSquares(yc, preds)
		loss += r.cfg.reg * tensorSquaredNorm(tk.Core)
		for _, f := range tk.Factors {
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
		tensorregErrors.Warn(tensorregErrors.NewConvergenceWarning("TuckerRegressor", r.nIter_, "maximum number of sweeps reached"))
	}

	r.decomposition = tk
	r.sampleShape = sampleShape
	r.ranks = ranks
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

// resolveRanks returns the per-mode Tucker ranks, falling back to the
// scalar rank option when WithRanks was not given, and validates them
// against the sample shape.
func resolveRanks(cfg *config, sampleShape []int) ([]int, error) {
	ranks := cfg.ranks
	if ranks == nil {
		if cfg.rank < 1 {
			return nil, tensorregErrors.NewValidationError("rank", "must be a positive integer", cfg.rank)
		}
		ranks = make([]int, len(sampleShape))
		for k := range ranks {
			ranks[k] = cfg.rank
		}
	}
	if len(ranks) != len(sampleShape) {
		return nil, tensorregErrors.NewValidationError("ranks", "must have one entry per sample mode", ranks)
	}
	out := make([]int, len(ranks))
	for k, rk := range ranks {
		if rk < 1 || rk > sampleShape[k] {
			return nil, tensorregErrors.NewValidationError("ranks", "each rank must lie in [1, mode dimension]", rk)
		}
		out[k] = rk
	}
	return out, nil
}

// assembleCoreDesign builds the N x (r_1 * ... * r_K) design for the core
// update: row i is vec(X_i projected onto every factor subspace).
func assembleCoreDesign(samples []*tensor.Tensor, factors []*mat.Dense, n, coreSize int) (*mat.Dense, error) {
	design := mat.NewDense(n, coreSize, nil)
	var (
		errMu    sync.Mutex
		firstErr error
	)
	parallel.ParallelizeWithThreshold(n, sampleParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			p, projErr := decomp.ProjectToCore(samples[i], factors)
			if projErr != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = projErr
				}
				errMu.Unlock()
				return
			}
			copy(design.RawRowView(i), p.Data())
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return design, nil
}

// assembleFactorDesign builds the N x (d_k * r_k) design for the mode-k
// factor update. X_i is first contracted with every other factor's
// transpose, then the contraction's mode-k unfolding is multiplied by the
// transpose of the core's mode-k unfolding:
//
//	<X_i, G x_l A_l> = vec(A_k)^T vec(Unfold_k(P_i) * Unfold_k(G)^T)
func assembleFactorDesign(samples []*tensor.Tensor, tk *decomp.Tucker, k, n, dk, rk int) (*mat.Dense, error) {
	coreUnfold, err := tensor.Unfold(tk.Core, k)
	if err != nil {
		return nil, err
	}

	design := mat.NewDense(n, dk*rk, nil)
	var (
		errMu    sync.Mutex
		firstErr error
	)
	parallel.ParallelizeWithThreshold(n, sampleParallelThreshold, func(start, end int) {
		var d mat.Dense
		for i := start; i < end; i++ {
			p := samples[i]
			var projErr error
			for l, f := range tk.Factors {
				if l == k {
					continue
				}
				p, projErr = tensor.ModeDot(p, f.T(), l)
				if projErr != nil {
					break
				}
			}
			var pk *mat.Dense
			if projErr == nil {
				pk, projErr = tensor.Unfold(p, k)
			}
			if projErr != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = projErr
				}
				errMu.Unlock()
				return
			}
			d.Reset()
			d.Mul(pk, coreUnfold.T())
			row := design.RawRowView(i)
			for q := 0; q < dk; q++ {
				for j := 0; j < rk; j++ {
					row[q*rk+j] = d.At(q, j)
				}
			}
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return design, nil
}

// Predict computes <X_i, W> for every sample in the batch using the fitted
// decomposition, without forming the dense weight tensor.
func (r *TuckerRegressor) Predict(X *tensor.Tensor) (_ *mat.VecDense, err error) {
	defer tensorregErrors.Recover(&err, "TuckerRegressor.Predict")

	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("TuckerRegressor", "Predict")
	}
	if X == nil {
		return nil, tensorregErrors.NewModelError("TuckerRegressor.Predict", "empty data", tensorregErrors.ErrEmptyData)
	}
	shape := X.Shape()
	if len(shape) < 2 || !sameDims(shape[1:], r.sampleShape) {
		return nil, tensorregErrors.NewShapeError("TuckerRegressor.Predict", r.sampleShape, shape[1:])
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
func (r *TuckerRegressor) Score(X *tensor.Tensor, y *mat.VecDense) (_ float64, err error) {
	defer tensorregErrors.Recover(&err, "TuckerRegressor.Score")

	preds, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, preds)
}

// Decomposition returns the fitted Tucker decomposition. The caller must
// treat it as read-only.
func (r *TuckerRegressor) Decomposition() (*decomp.Tucker, error) {
	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("TuckerRegressor", "Decomposition")
	}
	return r.decomposition, nil
}

// WeightTensor reconstructs and returns the dense weight tensor of shape
// (d_1, ..., d_K).
func (r *TuckerRegressor) WeightTensor() (*tensor.Tensor, error) {
	if !r.state.IsFitted() {
		return nil, tensorregErrors.NewNotFittedError("TuckerRegressor", "WeightTensor")
	}
	return r.decomposition.Reconstruct()
}

// LossHistory returns the regularized training loss after each sweep.
func (r *TuckerRegressor) LossHistory() []float64 {
	return append([]float64(nil), r.lossHistory_...)
}

// NIterations returns the number of completed outer sweeps.
func (r *TuckerRegressor) NIterations() int {
	return r.nIter_
}

// Converged reports whether the last fit met the convergence tolerance.
func (r *TuckerRegressor) Converged() bool {
	return r.converged_
}

// TerminationReason reports why the last fit stopped.
func (r *TuckerRegressor) TerminationReason() TerminationReason {
	return r.termination_
}

// IsFitted returns whether the model has been fitted.
func (r *TuckerRegressor) IsFitted() bool {
	return r.state.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (r *TuckerRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"ranks":          append([]int(nil), r.cfg.ranks...),
		"rank":           r.cfg.rank,
		"tol":            r.cfg.tol,
		"max_iterations": r.cfg.maxIter,
		"regularization": r.cfg.reg,
		"random_state":   r.cfg.seed,
		"verbose":        r.cfg.verbose,
	}
}

func (r *TuckerRegressor) reset() {
	r.decomposition = nil
	r.sampleShape = nil
	r.ranks = nil
	r.lossHistory_ = nil
	r.nIter_ = 0
	r.converged_ = false
	r.termination_ = TerminationNone
	r.state.Reset()
}

func tensorSquaredNorm(t *tensor.Tensor) float64 {
	s := 0.0
	for _, v := range t.Data() {
		s += v * v
	}
	return s
}
