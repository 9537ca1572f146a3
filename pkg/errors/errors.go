// Package errors provides structured error handling and the warning system
// used across tensorreg. It is inspired by scikit-learn's exception and
// warning taxonomy: validation failures are hard errors carrying stack
// traces (via cockroachdb/errors), while recoverable numerical conditions
// are surfaced as warnings through a configurable handler.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// Default handler logs to standard error.
		log.Printf("tensorreg-warning: %v\n", w)
	}
	// zerolog-backed warn function, registered lazily by pkg/log to avoid
	// a circular import.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler sets the library-wide warning handler. Use it to
// control how recoverable conditions such as ConvergenceWarning or
// NumericalInstabilityWarning are reported.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop all warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc registers a zerolog-backed warning sink. It exists so
// that pkg/log can route warnings into structured logging without creating
// an import cycle.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a warning. If a zerolog sink has been registered it takes
// precedence; otherwise the plain handler is used.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types (recoverable, reported via Warn)
//
// ===========================================================================

// ConvergenceWarning is raised when an iterative solver exhausts its
// iteration budget without meeting the convergence tolerance. This is a
// reported, non-fatal termination: the fitted model remains usable.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iterations or loosening tol.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds structured warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a new ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// NumericalInstabilityWarning is raised when a least-squares solve is
// extremely ill-conditioned. The solver continues (the ridge term keeps the
// system solvable) but the condition is surfaced to the caller.
type NumericalInstabilityWarning struct {
	Operation string  // e.g. "cp_factor_update"
	Condition float64 // estimated condition number of the normal equations
	Sweep     int     // outer ALS sweep in which the condition was observed
}

func (w *NumericalInstabilityWarning) Error() string {
	return fmt.Sprintf("ill-conditioned system in %s at sweep %d (condition number %.3g). Consider increasing regularization.",
		w.Operation, w.Sweep, w.Condition)
}

// MarshalZerologObject adds structured warning fields to a zerolog event.
func (w *NumericalInstabilityWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Operation).
		Float64("condition", w.Condition).
		Int("sweep", w.Sweep).
		Str("type", "NumericalInstabilityWarning")
}

// NewNumericalInstabilityWarning creates a new NumericalInstabilityWarning.
func NewNumericalInstabilityWarning(operation string, condition float64, sweep int) *NumericalInstabilityWarning {
	return &NumericalInstabilityWarning{Operation: operation, Condition: condition, Sweep: sweep}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// NotFittedError is returned when Predict, Score or a decomposition
// accessor is called on a model that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tensorreg: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with an attached stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when the size of an input along one axis does
// not match the expected size.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for samples/rows, 1 for columns
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("tensorreg: %s: dimension mismatch on axis %d. Expected %d, got %d", e.Op, e.Axis, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with an attached stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ShapeError is returned when a whole tensor shape disagrees with the
// expected shape, e.g. a prediction batch whose trailing mode dimensions
// differ from the ones seen at fit time.
type ShapeError struct {
	Op       string
	Expected []int
	Got      []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("tensorreg: %s: tensor shape mismatch. Expected %v, got %v", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("type", "ShapeError")
}

// NewShapeError creates a ShapeError with an attached stack trace.
func NewShapeError(op string, expected, got []int) error {
	err := &ShapeError{Op: op, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// ValidationError is returned when a configuration parameter fails
// validation, before any model state has been mutated.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tensorreg: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with an attached stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument value is unusable for an
// operation, e.g. an unfold mode outside the tensor order.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tensorreg: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with an attached stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general model-level error with an operation and a kind.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tensorreg: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("tensorreg: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with an attached stack trace.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// DivergenceError is a fatal optimization failure: non-finite values (NaN
// or Inf) appeared in a decomposition block after an update. Fit is aborted
// and the model remains unfitted.
type DivergenceError struct {
	Operation string    // update that produced the non-finite values
	Sweep     int       // outer ALS sweep
	Values    []float64 // sample of the offending values
}

func (e *DivergenceError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("tensorreg: divergence detected in %s at sweep %d. Non-finite values: [%s]",
		e.Operation, e.Sweep, valStr)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DivergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("sweep", e.Sweep).
		Floats64("values", e.Values).
		Str("type", "DivergenceError")
}

// NewDivergenceError creates a DivergenceError with an attached stack trace.
func NewDivergenceError(operation string, values []float64, sweep int) error {
	err := &DivergenceError{Operation: operation, Sweep: sweep, Values: values}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty sample batch or label vector
	// is passed to Fit or Predict.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when an unregularized normal-equations
	// system is singular and cannot be solved.
	ErrSingularMatrix = New("singular matrix")
)
