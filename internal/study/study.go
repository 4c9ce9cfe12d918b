// Package study loads the YAML study file describing one two-city transfer
// analysis: where each city's grid table lives, which feature columns the
// model uses, and where the scored outputs go.
package study

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
)

// CityInput names one city's grid table and scored output.
type CityInput struct {
	Name   string `yaml:"name"`
	Input  string `yaml:"input"`  // .csv table or .shp attribute table
	Output string `yaml:"output"` // scored CSV path
}

// Study is one cross-city transfer analysis.
type Study struct {
	Name         string    `yaml:"name"`
	TrainingCity CityInput `yaml:"training_city"`
	TargetCity   CityInput `yaml:"target_city"`
	// Features is the model's feature column list in fit order. Defaults to
	// the normalized predictors plus the remaining raw ones.
	Features  []string `yaml:"features"`
	ModelPath string   `yaml:"model_path"`
}

// DefaultFeatures is the standard feature set: normalized elevation and flow
// accumulation plus the predictors whose scales already transfer.
var DefaultFeatures = []string{
	grid.ColNormalizedElevation,
	grid.ColSlope,
	grid.ColNormalizedFlowAccum,
	grid.ColDistanceToRiver,
	grid.ColDeveloped,
	grid.ColForest,
	grid.ColGrassland,
}

// Load reads a study file and fills defaults.
func Load(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "study: read %s", path)
	}

	var wrapper struct {
		Study Study `yaml:"study"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "study: parse %s", path)
	}

	s := &wrapper.Study
	if len(s.Features) == 0 {
		s.Features = append([]string(nil), DefaultFeatures...)
	}
	if s.ModelPath == "" {
		s.ModelPath = "model.json"
	}
	if err := s.validate(); err != nil {
		return nil, eris.Wrapf(err, "study: %s", path)
	}
	return s, nil
}

func (s *Study) validate() error {
	if s.TrainingCity.Name == "" || s.TrainingCity.Input == "" {
		return eris.New("training_city needs name and input")
	}
	if s.TargetCity.Name != "" && s.TargetCity.Input == "" {
		return eris.New("target_city needs an input")
	}
	return nil
}
