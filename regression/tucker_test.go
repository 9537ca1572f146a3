package regression

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
	tensorregErrors "github.com/numanelahi/tensorreg/pkg/errors"
)

func TestTuckerRegressor_FitValidation(t *testing.T) {
	w, _ := tensor.Zeros(4, 4)
	w.Set(1, 0, 0)
	X, y := synthBatch(t, 2, 20, w)

	tests := []struct {
		name string
		opts []Option
		X    *tensor.Tensor
		y    *mat.VecDense
	}{
		{name: "nil X", X: nil, y: y},
		{name: "label length mismatch", X: X, y: mat.NewVecDense(19, nil)},
		{name: "rank count mismatch", opts: []Option{WithRanks(2)}, X: X, y: y},
		{name: "too many ranks", opts: []Option{WithRanks(2, 2, 2)}, X: X, y: y},
		{name: "rank above mode dimension", opts: []Option{WithRanks(5, 2)}, X: X, y: y},
		{name: "zero rank entry", opts: []Option{WithRanks(0, 2)}, X: X, y: y},
		{name: "non-positive tolerance", opts: []Option{WithTol(-1)}, X: X, y: y},
		{name: "negative regularization", opts: []Option{WithRegularization(-0.5)}, X: X, y: y},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewTuckerRegressor(tt.opts...)
			if err := reg.Fit(tt.X, tt.y); err == nil {
				t.Error("Fit() should fail")
			}
			if reg.IsFitted() {
				t.Error("model must stay unfitted after a failed Fit()")
			}
		})
	}
}

func TestTuckerRegressor_DefaultRanksFromScalarRank(t *testing.T) {
	w, _ := tensor.Zeros(4, 5)
	w.Set(1, 0, 0)
	w.Set(-1, 3, 4)
	X, y := synthBatch(t, 8, 200, w)

	// Without WithRanks, the scalar rank applies to every mode.
	reg := NewTuckerRegressor(WithRank(2), WithMaxIter(20), WithRandomState(3))
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	d, err := reg.Decomposition()
	if err != nil {
		t.Fatalf("Decomposition() error = %v", err)
	}
	want := []int{2, 2}
	got := d.Ranks()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Decomposition().Ranks() = %v, want %v", got, want)
	}
}

func TestTuckerRegressor_NotFittedErrors(t *testing.T) {
	reg := NewTuckerRegressor()
	X, _ := tensor.Zeros(2, 3, 3)

	if _, err := reg.Predict(X); err == nil {
		t.Error("Predict() before Fit() should fail")
	} else {
		var nfe *tensorregErrors.NotFittedError
		if !errors.As(err, &nfe) {
			t.Errorf("Predict() error = %v, want NotFittedError", err)
		}
	}
	if _, err := reg.WeightTensor(); err == nil {
		t.Error("WeightTensor() before Fit() should fail")
	}
}

func TestTuckerRegressor_MonotoneLoss(t *testing.T) {
	rng := rand.New(rand.NewPCG(19, 23))
	X, err := tensor.Random(rng, 60, 5, 6)
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	y := mat.NewVecDense(60, nil)
	for i := 0; i < 60; i++ {
		y.SetVec(i, rng.NormFloat64())
	}

	reg := NewTuckerRegressor(
		WithRanks(2, 2),
		WithRegularization(1.0),
		WithMaxIter(25),
		WithRandomState(7),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	history := reg.LossHistory()
	if len(history) == 0 {
		t.Fatal("LossHistory() is empty after Fit()")
	}
	for i := 1; i < len(history); i++ {
		if history[i] > history[i-1]*(1+1e-10)+1e-10 {
			t.Errorf("loss increased at sweep %d: %v -> %v", i+1, history[i-1], history[i])
		}
	}
}

func TestTuckerRegressor_SwissCrossEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end fit in short mode")
	}

	w := swissCross(t)
	X, y := synthBatch(t, 101, 1000, w)

	reg := NewTuckerRegressor(
		WithRanks(2, 2),
		WithRegularization(1.0),
		WithTol(1e-6),
		WithMaxIter(100),
		WithRandomState(42),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	r2, err := reg.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if r2 < 0.9 {
		t.Errorf("Score() = %v, want > 0.9 on the swiss-cross pattern", r2)
	}
}

func TestTuckerRegressor_Order3Recovery(t *testing.T) {
	// A separable order-3 weight is a Tucker tensor with all ranks one.
	a := mat.NewDense(4, 1, []float64{1, -1, 2, 0.5})
	b := mat.NewDense(3, 1, []float64{2, 1, -1})
	c := mat.NewDense(3, 1, []float64{1, 0.5, -2})
	w, err := tensor.ReconstructCP([]*mat.Dense{a, b, c}, nil)
	if err != nil {
		t.Fatalf("ReconstructCP() error = %v", err)
	}
	X, y := synthBatch(t, 31, 400, w)

	reg := NewTuckerRegressor(
		WithRanks(1, 1, 1),
		WithRegularization(0),
		WithTol(1e-10),
		WithMaxIter(100),
		WithRandomState(11),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	r2, err := reg.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if r2 < 0.999 {
		t.Errorf("Score() = %v, want > 0.999 on noise-free separable data", r2)
	}

	XHeld, yHeld := synthBatch(t, 47, 120, w)
	heldR2, err := reg.Score(XHeld, yHeld)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if heldR2 < 0.999 {
		t.Errorf("held-out Score() = %v, want > 0.999", heldR2)
	}
}

func TestTuckerRegressor_Deterministic(t *testing.T) {
	w := swissCross(t)
	X, y := synthBatch(t, 5, 200, w)

	fit := func() *tensor.Tensor {
		reg := NewTuckerRegressor(
			WithRanks(2, 2),
			WithRegularization(1.0),
			WithMaxIter(15),
			WithRandomState(123),
		)
		if err := reg.Fit(X, y); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
		wt, err := reg.WeightTensor()
		if err != nil {
			t.Fatalf("WeightTensor() error = %v", err)
		}
		return wt
	}

	if !tensor.EqualApprox(fit(), fit(), 0) {
		t.Error("two fits with the same seed produced different weight tensors")
	}
}

func TestTuckerRegressor_TerminationConsistency(t *testing.T) {
	w := swissCross(t)
	X, y := synthBatch(t, 5, 200, w)

	reg := NewTuckerRegressor(
		WithRanks(2, 2),
		WithTol(1e-12),
		WithMaxIter(1),
		WithRandomState(9),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if reg.Converged() {
		t.Error("a single sweep with a tiny tolerance should not converge")
	}
	if reg.TerminationReason() != TerminationMaxIter {
		t.Errorf("TerminationReason() = %v, want %v", reg.TerminationReason(), TerminationMaxIter)
	}
	if reg.NIterations() != 1 {
		t.Errorf("NIterations() = %d, want 1", reg.NIterations())
	}
	if got := len(reg.LossHistory()); got != 1 {
		t.Errorf("len(LossHistory()) = %d, want 1", got)
	}
}

func TestTuckerRegressor_FitContextCancelled(t *testing.T) {
	w := swissCross(t)
	X, y := synthBatch(t, 5, 100, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := NewTuckerRegressor(WithRanks(2, 2), WithRandomState(1))
	err := reg.FitContext(ctx, X, y)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FitContext() error = %v, want context.Canceled", err)
	}
	if reg.IsFitted() {
		t.Error("model must stay unfitted after a cancelled fit")
	}
}

func TestTuckerRegressor_PredictShapeMismatch(t *testing.T) {
	w := swissCross(t)
	X, y := synthBatch(t, 5, 100, w)

	reg := NewTuckerRegressor(WithRanks(2, 2), WithMaxIter(5), WithRandomState(1))
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	wrong, _ := tensor.Zeros(3, 24, 25)
	if _, err := reg.Predict(wrong); err == nil {
		t.Error("Predict() with a mismatched sample shape should fail")
	}
}

func TestTerminationReason_String(t *testing.T) {
	tests := []struct {
		reason TerminationReason
		want   string
	}{
		{TerminationNone, "none"},
		{TerminationConverged, "converged"},
		{TerminationMaxIter, "max_iterations"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("TerminationReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestTuckerRegressor_FitDivergesOnNonFiniteLabels(t *testing.T) {
	w, err := tensor.Random(rand.New(rand.NewPCG(8, 8)), 4, 3, 3)
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	X, y := synthBatch(t, 13, 40, w)
	y.SetVec(5, math.Inf(1))

	reg := NewTuckerRegressor(WithRanks(2, 2, 2), WithRandomState(7))
	err = reg.Fit(X, y)

	var divErr *tensorregErrors.DivergenceError
	if !errors.As(err, &divErr) {
		t.Fatalf("Fit() error = %v, want DivergenceError", err)
	}
	if divErr.Sweep != 1 {
		t.Errorf("DivergenceError.Sweep = %d, want 1", divErr.Sweep)
	}
	if reg.IsFitted() {
		t.Error("IsFitted() = true after a diverged fit, want false")
	}
	if _, err := reg.Predict(X); err == nil {
		t.Error("Predict() after a diverged fit should fail")
	}
}
