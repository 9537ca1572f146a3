package errors

import (
	"math"
)

// CheckFinite scans values for NaN or Inf and returns a DivergenceError if
// any are found. Solvers call it on every decomposition block after an
// update; a hit aborts fitting rather than silently propagating non-finite
// results.
func CheckFinite(operation string, values []float64, sweep int) error {
	var bad []float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad = append(bad, v)
			if len(bad) >= 10 {
				break
			}
		}
	}
	if len(bad) > 0 {
		return NewDivergenceError(operation, bad, sweep)
	}
	return nil
}

// CheckMatrixFinite checks every entry of a matrix for NaN or Inf.
func CheckMatrixFinite(operation string, m interface{ At(int, int) float64 }, rows, cols, sweep int) error {
	var bad []float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
				if len(bad) >= 10 {
					break
				}
			}
		}
		if len(bad) > 0 {
			break
		}
	}
	if len(bad) > 0 {
		return NewDivergenceError(operation, bad, sweep)
	}
	return nil
}

// CheckScalarFinite checks a single scalar for NaN or Inf.
func CheckScalarFinite(operation string, value float64, sweep int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewDivergenceError(operation, []float64{value}, sweep)
	}
	return nil
}

// WarnIfIllConditioned emits a NumericalInstabilityWarning when the
// estimated condition number of a solve exceeds threshold. The solve itself
// proceeds; regularization is the mitigation.
func WarnIfIllConditioned(operation string, condition float64, threshold float64, sweep int) {
	if condition > threshold || math.IsInf(condition, 0) {
		Warn(NewNumericalInstabilityWarning(operation, condition, sweep))
	}
}
