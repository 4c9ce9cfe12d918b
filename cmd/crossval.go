package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/pipeline"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/study"
)

var crossvalStudyPath string

var crossvalCmd = &cobra.Command{
	Use:   "crossval",
	Short: "Cross-validate the model on the training city",
	Long: `Runs standalone k-fold cross-validation on the labeled training city at
the fixed 0.5 reporting threshold and prints the fold summary as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := study.Load(crossvalStudyPath)
		if err != nil {
			return err
		}

		ds, err := pipeline.LoadDataset(s.TrainingCity.Input, s.TrainingCity.Name)
		if err != nil {
			return eris.Wrap(err, "crossval: load dataset")
		}

		p := pipeline.New(cfg, nil)
		if err := p.NormalizeDataset(ds); err != nil {
			return eris.Wrap(err, "crossval: normalize")
		}

		summary, err := evaluate.CrossValidate(ds, s.Features, grid.ColInundated, cfg.CrossVal.Folds, cfg.CrossVal.Seed, cfg.Model)
		if err != nil {
			return eris.Wrap(err, "crossval")
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return eris.Wrap(err, "crossval: marshal summary")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	crossvalCmd.Flags().StringVar(&crossvalStudyPath, "study", "study.yaml", "study file describing the two-city analysis")
	rootCmd.AddCommand(crossvalCmd)
}
