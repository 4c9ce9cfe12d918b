package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/pipeline"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/study"
)

var trainStudyPath string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit and evaluate the model on the labeled training city",
	Long: `Loads the training city's grid table, normalizes its predictors against
its own ranges, fits the logistic model on a random training partition,
evaluates the holdout at the operational threshold, cross-validates at 0.5,
scores every cell, and writes the scored table, the model artifact, and a
store run.

Example:
  flood-transfer train --study study.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := study.Load(trainStudyPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		ds, err := pipeline.LoadDataset(s.TrainingCity.Input, s.TrainingCity.Name)
		if err != nil {
			return eris.Wrap(err, "train: load dataset")
		}

		p := pipeline.New(cfg, st)
		res, err := p.Train(ctx, ds, s.Features)
		if err != nil {
			return eris.Wrap(err, "train")
		}

		if err := res.Model.Save(s.ModelPath); err != nil {
			return err
		}
		if out := s.TrainingCity.Output; out != "" {
			if err := grid.WriteScoredCSV(res.Dataset, out); err != nil {
				return err
			}
		}

		for _, c := range res.Model.Coefficients {
			zap.L().Info("coefficient",
				zap.String("feature", c.Feature),
				zap.Float64("estimate", c.Estimate),
				zap.Float64("std_error", c.StdError),
				zap.Float64("z", c.Z),
				zap.Float64("p_value", c.PValue),
			)
		}
		zap.L().Info("train complete",
			zap.String("run_id", res.RunID),
			zap.String("model", s.ModelPath),
			zap.String("scored_output", s.TrainingCity.Output),
		)
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainStudyPath, "study", "study.yaml", "study file describing the two-city analysis")
	rootCmd.AddCommand(trainCmd)
}
