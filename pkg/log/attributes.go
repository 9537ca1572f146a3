// Standard attribute keys for tensor-regression logging. Using these keys
// keeps log output consistent and filterable across the library.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "KruskalRegressor", "TuckerRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "regression", "tensor", "metrics"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	// Examples: "training", "inference"
	PhaseKey = "ml.phase"
)

// Data shape and characteristics.
const (
	// SamplesKey is the number of samples in the batch.
	SamplesKey = "data.samples"

	// ModesKey is the number of feature modes of each sample tensor.
	ModesKey = "data.modes"

	// ShapeKey is the per-sample tensor shape.
	ShapeKey = "data.shape"

	// FeaturesKey is the total number of scalar features per sample
	// (the product of the mode dimensions).
	FeaturesKey = "data.features"
)

// Training and performance.
const (
	// DurationMsKey records execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the regularized training loss.
	LossKey = "metrics.loss"

	// R2ScoreKey records the coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// SweepKey records the current outer ALS sweep.
	SweepKey = "training.sweep"

	// RankKey records the decomposition rank (or multilinear ranks).
	RankKey = "hyperparams.rank"

	// RegularizationKey records the ridge strength.
	RegularizationKey = "hyperparams.regularization"

	// RandomSeedKey records the random seed used for initialization.
	RandomSeedKey = "config.random_seed"

	// TerminationKey records why fitting stopped.
	// Values: "converged", "max_iterations"
	TerminationKey = "training.termination"
)

// Prediction context.
const (
	// PredsKey is the number of predictions produced.
	PredsKey = "preds.count"
)

// Standard operation and phase values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining  = "training"
	PhaseInference = "inference"
)
