package logistic

import (
	"encoding/json"
	"math"
)

// Standard errors, z, and p are NaN when the information matrix is singular
// (separation). They marshal as null so the model artifact stays valid JSON
// and round-trips back to NaN.

type coefficientJSON struct {
	Feature  string   `json:"feature"`
	Estimate float64  `json:"estimate"`
	StdError *float64 `json:"std_error"`
	Z        *float64 `json:"z"`
	PValue   *float64 `json:"p_value"`
}

func (c Coefficient) MarshalJSON() ([]byte, error) {
	return json.Marshal(coefficientJSON{
		Feature:  c.Feature,
		Estimate: c.Estimate,
		StdError: nanPtr(c.StdError),
		Z:        nanPtr(c.Z),
		PValue:   nanPtr(c.PValue),
	})
}

func (c *Coefficient) UnmarshalJSON(data []byte) error {
	var aux coefficientJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Coefficient{
		Feature:  aux.Feature,
		Estimate: aux.Estimate,
		StdError: ptrNaN(aux.StdError),
		Z:        ptrNaN(aux.Z),
		PValue:   ptrNaN(aux.PValue),
	}
	return nil
}

func nanPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func ptrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
