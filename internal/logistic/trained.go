// Package logistic fits and applies the binomial logistic regression at the
// core of the cross-city transfer pipeline. The TrainedModel produced by Fit
// is the artifact that moves between cities: fit once on the labeled city,
// applied unchanged to any dataset whose feature columns follow the same
// normalization convention.
package logistic

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// InterceptName is the feature name reported for the intercept coefficient.
const InterceptName = "(Intercept)"

// Coefficient is one fitted term with its Wald test statistics.
type Coefficient struct {
	Feature  string  `json:"feature"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
}

// TrainedModel is the read-only result of a fit: the ordered feature list,
// fitted coefficients (intercept first), and training metadata. It is safe
// for concurrent use; nothing mutates it after Fit returns.
type TrainedModel struct {
	Features     []string      `json:"features"`
	Coefficients []Coefficient `json:"coefficients"`
	Link         string        `json:"link"`
	SampleSize   int           `json:"sample_size"`
	Iterations   int           `json:"iterations"`
	Deviance     float64       `json:"deviance"`
	NullDeviance float64       `json:"null_deviance"`
	Converged    bool          `json:"converged"`
	Separated    bool          `json:"separated"`
	TrainedAt    time.Time     `json:"trained_at"`
}

// Coefficient returns the named coefficient, including InterceptName.
func (m *TrainedModel) Coefficient(feature string) (Coefficient, bool) {
	for _, c := range m.Coefficients {
		if c.Feature == feature {
			return c, true
		}
	}
	return Coefficient{}, false
}

// Intercept returns the fitted intercept estimate.
func (m *TrainedModel) Intercept() float64 {
	return m.Coefficients[0].Estimate
}

// Save writes the model as JSON.
func (m *TrainedModel) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "logistic: marshal model")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "logistic: write model %s", path)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(path string) (*TrainedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "logistic: read model %s", path)
	}
	var m TrainedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "logistic: parse model %s", path)
	}
	if len(m.Coefficients) != len(m.Features)+1 {
		return nil, eris.Errorf("logistic: model %s: %d coefficients for %d features",
			path, len(m.Coefficients), len(m.Features))
	}
	return &m, nil
}
