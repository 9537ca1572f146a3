package regression

// config holds the constructor-time hyperparameters shared by the CP and
// Tucker regressors. It is immutable after construction; validation happens
// at Fit entry, before any state is mutated.
type config struct {
	rank    int     // CP rank
	ranks   []int   // Tucker multilinear ranks, one per feature mode
	tol     float64 // relative loss-change convergence tolerance
	maxIter int     // outer ALS sweep budget
	reg     float64 // ridge strength applied to every decomposition block
	seed    int64   // random seed; negative means time-based
	verbose bool    // per-sweep progress logging at info level
}

func defaultConfig() config {
	return config{
		rank:    1,
		tol:     1e-6,
		maxIter: 100,
		reg:     1.0,
		seed:    -1,
		verbose: false,
	}
}

// Option is a configuration option for the tensor regressors.
type Option func(*config)

// WithRank sets the CP rank (number of rank-one components).
func WithRank(rank int) Option {
	return func(c *config) {
		c.rank = rank
	}
}

// WithRanks sets the Tucker multilinear ranks, one per feature mode.
func WithRanks(ranks ...int) Option {
	return func(c *config) {
		c.ranks = append([]int(nil), ranks...)
	}
}

// WithTol sets the convergence tolerance on the relative change of the
// regularized training loss between consecutive sweeps.
func WithTol(tol float64) Option {
	return func(c *config) {
		c.tol = tol
	}
}

// WithMaxIter sets the maximum number of outer ALS sweeps.
func WithMaxIter(maxIter int) Option {
	return func(c *config) {
		c.maxIter = maxIter
	}
}

// WithRegularization sets the ridge strength added to the normal-equations
// diagonal of every block update. Strictly positive values guarantee a
// unique solution even for rank-deficient designs.
func WithRegularization(reg float64) Option {
	return func(c *config) {
		c.reg = reg
	}
}

// WithRandomState sets the seed for factor initialization. Fits with the
// same seed and data produce identical decompositions.
func WithRandomState(seed int64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// WithVerbose enables per-sweep progress logging.
func WithVerbose(verbose bool) Option {
	return func(c *config) {
		c.verbose = verbose
	}
}
