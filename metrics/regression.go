// Package metrics provides evaluation metrics for regression models.
//
// The functions operate on gonum vectors and are used by the estimators'
// Score methods and by the examples:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	r2, err := metrics.R2Score(yTrue, yPred)
//
// All metrics validate that inputs are non-empty and of equal length.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	tensorregErrors "github.com/numanelahi/tensorreg/pkg/errors"
)

// MSE calculates the Mean Squared Error between true and predicted values.
//
// MSE = (1/n) * sum((yTrue - yPred)^2). Lower is better; sensitive to
// outliers because of the squaring.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, tensorregErrors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, tensorregErrors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE calculates the Root Mean Squared Error, the square root of MSE,
// expressed in the units of the target variable.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the Mean Absolute Error, a robust alternative to MSE that
// weights all residuals linearly.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, tensorregErrors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, tensorregErrors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score calculates the coefficient of determination R².
//
// R² = 1 - RSS/TSS where RSS is the residual sum of squares and TSS the
// total sum of squares around the mean of yTrue. A perfect model scores
// 1.0; a model predicting the mean scores 0.0. Returns an error when yTrue
// has zero variance, since the score is undefined there.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, tensorregErrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, tensorregErrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		yi := yTrue.AtVec(i)
		pi := yPred.AtVec(i)
		tss += (yi - yMean) * (yi - yMean)
		rss += (yi - pi) * (yi - pi)
	}

	if tss == 0 {
		return 0, tensorregErrors.NewValueError("R2Score", "cannot compute score with zero variance in yTrue")
	}
	return 1 - rss/tss, nil
}
