package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/pipeline"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/study"
)

var (
	transferStudyPath string
	transferModelPath string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Score the unmapped target city with a trained model",
	Long: `Loads the target city's grid table, normalizes it against its own
observed ranges, applies the saved training-city model, quantile-bins the
probabilities independently of the training city, and writes the scored
table.

Example:
  flood-transfer transfer --study study.yaml
  flood-transfer transfer --study study.yaml --model custom-model.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := study.Load(transferStudyPath)
		if err != nil {
			return err
		}
		if s.TargetCity.Input == "" {
			return eris.Errorf("transfer: study %s has no target_city", transferStudyPath)
		}
		modelPath := transferModelPath
		if modelPath == "" {
			modelPath = s.ModelPath
		}

		model, err := logistic.Load(modelPath)
		if err != nil {
			return err
		}
		if !model.Converged {
			zap.L().Warn("model artifact is flagged non-converged; transfer estimates may be unreliable")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		ds, err := pipeline.LoadDataset(s.TargetCity.Input, s.TargetCity.Name)
		if err != nil {
			return eris.Wrap(err, "transfer: load dataset")
		}

		p := pipeline.New(cfg, st)
		res, err := p.Transfer(ctx, model, ds)
		if err != nil {
			return eris.Wrap(err, "transfer")
		}

		if out := s.TargetCity.Output; out != "" {
			if err := grid.WriteScoredCSV(res.Dataset, out); err != nil {
				return err
			}
		}

		zap.L().Info("transfer complete",
			zap.String("run_id", res.RunID),
			zap.String("city", s.TargetCity.Name),
			zap.String("scored_output", s.TargetCity.Output),
		)
		return nil
	},
}

func init() {
	transferCmd.Flags().StringVar(&transferStudyPath, "study", "study.yaml", "study file describing the two-city analysis")
	transferCmd.Flags().StringVar(&transferModelPath, "model", "", "model artifact path (defaults to the study's model_path)")
	rootCmd.AddCommand(transferCmd)
}
