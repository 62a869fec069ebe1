package scoring

import (
	"fmt"

	"github.com/dmitryikh/leaves"
)

// Model is the black-box scoring contract: a fixed-width numeric feature
// vector per row in, one scalar confidence per row out.
type Model interface {
	NumFeatures() int
	PredictDense(values []float64, rows int) ([]float64, error)
}

type xgbModel struct {
	ensemble *leaves.Ensemble
}

// LoadModel reads a serialized XGBoost ensemble from disk. The transformation
// is loaded with the trees so predictions come out as probabilities in [0,1].
// A missing or unreadable artifact is fatal for the whole run.
func LoadModel(path string) (Model, error) {
	ensemble, err := leaves.XGEnsembleFromFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("load sell model from %s: %w", path, err)
	}
	return &xgbModel{ensemble: ensemble}, nil
}

func (m *xgbModel) NumFeatures() int {
	return m.ensemble.NFeatures()
}

func (m *xgbModel) PredictDense(values []float64, rows int) ([]float64, error) {
	if rows == 0 {
		return nil, nil
	}
	cols := len(values) / rows
	predictions := make([]float64, rows)
	if err := m.ensemble.PredictDense(values, rows, cols, predictions, 0, 1); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return predictions, nil
}

var _ Model = (*xgbModel)(nil)
