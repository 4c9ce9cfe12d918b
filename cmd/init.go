package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

const defaultConfigYAML = `# flood-transfer configuration. Every key can also be set via FLOOD_* env vars.
split:
  train_fraction: 0.70
  seed: 42

model:
  max_iterations: 50
  tolerance: 1e-6

crossval:
  folds: 5
  seed: 42

risk:
  # Operational mapping threshold. Kept below the 0.5 cross-validation
  # reporting cutoff: missed flood zones cost more than false alarms.
  operational_threshold: 0.2
  bins: 5

normalize:
  # Target ranges approximating each variable's cross-city dynamic range.
  elevation_range: {min: 0, max: 300}
  flow_accum_range: {min: 0, max: 10000}

evaluate:
  roc_resolution: 100

store:
  driver: sqlite       # sqlite | postgres | none
  database_url: flood.db

log:
  level: info
  format: console      # console | json
`

const defaultStudyYAML = `study:
  name: calgary-portland-2013
  training_city:
    name: calgary
    input: data/calgary_grid.csv      # or a .shp attribute table
    output: out/calgary_scored.csv
  target_city:
    name: portland
    input: data/portland_grid.csv
    output: out/portland_scored.csv
  model_path: out/model.json
  # features defaults to the normalized predictors plus slope, distance to
  # river, and the land-cover fractions; uncomment to override.
  # features: [normalized_elevation, slope, normalized_flow_accumulation, distance_to_river, developed, forest, grassland]
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default config.yaml and study.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range []struct {
			path, content string
		}{
			{"config.yaml", defaultConfigYAML},
			{"study.yaml", defaultStudyYAML},
		} {
			if _, err := os.Stat(f.path); err == nil && !initForce {
				return eris.Errorf("init: %s exists, use --force to overwrite", f.path)
			}
			if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
				return eris.Wrapf(err, "init: write %s", f.path)
			}
			fmt.Println("wrote", f.path)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
