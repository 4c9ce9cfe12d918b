package logistic

import (
	"github.com/rotisserie/eris"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
)

// Predict applies the fitted linear combination and sigmoid to every cell,
// using the exact feature order from fit time. The dataset may be a
// different city than the one the model was fit on, as long as its feature
// columns follow the same names and normalization convention; that
// cross-dataset applicability is the point of the component.
//
// Probabilities are strictly inside (0,1). Returns grid.ErrSchemaMismatch
// when a required feature column is absent.
func Predict(m *TrainedModel, d *grid.Dataset) ([]float64, error) {
	cols := make([][]float64, len(m.Features))
	for j, f := range m.Features {
		col, err := d.Values(f)
		if err != nil {
			return nil, eris.Wrapf(err, "logistic: predict %s with model features %v", d.City, m.Features)
		}
		cols[j] = col
	}

	probs := make([]float64, d.Len())
	for i := range probs {
		eta := m.Coefficients[0].Estimate
		for j := range cols {
			eta += m.Coefficients[j+1].Estimate * cols[j][i]
		}
		probs[i] = clampProb(sigmoid(eta))
	}
	return probs, nil
}

// Score runs Predict and writes the probabilities onto the dataset's
// predicted_probability column.
func Score(m *TrainedModel, d *grid.Dataset) ([]float64, error) {
	probs, err := Predict(m, d)
	if err != nil {
		return nil, err
	}
	if err := d.SetDerived(grid.ColProbability, probs); err != nil {
		return nil, eris.Wrap(err, "logistic: score")
	}
	return probs, nil
}
