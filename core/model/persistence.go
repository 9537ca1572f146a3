// Model persistence using encoding/gob. Estimators implement
// gob.GobEncoder/gob.GobDecoder over an exported snapshot of their fitted
// state, so a trained model can be written to disk and restored into a
// fresh instance.

package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

// SaveModel serializes a model to a file. The model must be gob-encodable,
// either through exported fields or a GobEncode implementation.
//
// Example:
//
//	reg := regression.NewKruskalRegressor(regression.WithRank(2))
//	_ = reg.Fit(X, y)
//	err := model.SaveModel(reg, "weights.gob")
func SaveModel(model interface{}, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := gob.NewEncoder(file).Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModel restores a model previously written by SaveModel into the
// given instance. The instance must be a pointer of the same concrete type
// that was saved.
func LoadModel(model interface{}, filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := gob.NewDecoder(file).Decode(model); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}
