// Package pipeline wires the transfer-learning stages together: normalize,
// split, fit, evaluate, score, classify, persist. The commands under cmd/
// are thin wrappers around it.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/config"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/risk"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/store"
)

// Pipeline runs the train and transfer operations against one configuration.
// The store is optional; with a nil store runs are not persisted.
type Pipeline struct {
	cfg *config.Config
	st  store.Store
}

// New builds a Pipeline.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, st: st}
}

// TrainResult is the outcome of a training run on the labeled city.
type TrainResult struct {
	RunID   string
	Model   *logistic.TrainedModel
	Report  *evaluate.Report
	Dataset *grid.Dataset // fully scored training city
}

// TransferResult is the outcome of scoring the unlabeled target city.
type TransferResult struct {
	RunID   string
	Dataset *grid.Dataset
}

// LoadDataset reads a city grid table, choosing the reader by extension
// (.shp for shapefile attribute tables, anything else is CSV).
func LoadDataset(path, city string) (*grid.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return grid.ReadShapefile(path, city)
	}
	return grid.ReadCSV(path, city)
}

// NormalizeDataset derives the normalized elevation and flow-accumulation
// columns against the dataset's own observed range. Every dataset entering
// fit or predict goes through this independently; sharing ranges across
// cities would undo the transfer scheme.
func (p *Pipeline) NormalizeDataset(d *grid.Dataset) error {
	if err := grid.Normalize(d, grid.ColElevation, grid.ColNormalizedElevation, p.cfg.Normalize.ElevationRange.Grid()); err != nil {
		return err
	}
	return grid.Normalize(d, grid.ColFlowAccumulation, grid.ColNormalizedFlowAccum, p.cfg.Normalize.FlowAccumRange.Grid())
}

// Train fits the model on the labeled city: split, fit on the training
// partition, evaluate the holdout at the operational threshold with ROC/AUC
// and k-fold cross-validation, then score and classify the full dataset.
func (p *Pipeline) Train(ctx context.Context, d *grid.Dataset, features []string) (*TrainResult, error) {
	if !d.Labeled() {
		return nil, eris.Wrapf(grid.ErrSchemaMismatch, "pipeline: train: %s dataset has no %s column", d.City, grid.ColInundated)
	}
	log := zap.L().With(zap.String("city", d.City))

	if err := p.NormalizeDataset(d); err != nil {
		return nil, eris.Wrap(err, "pipeline: train: normalize")
	}

	train, holdout, err := grid.Split(d, grid.ColInundated, p.cfg.Split.TrainFraction, p.cfg.Split.Seed)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: split")
	}
	log.Info("partitioned dataset",
		zap.Int("train", train.Len()),
		zap.Int("holdout", holdout.Len()),
	)

	model, err := logistic.Fit(train, features, grid.ColInundated, p.cfg.Model)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: fit")
	}

	// Holdout evaluation at the operational threshold.
	holdoutProbs, err := logistic.Predict(model, holdout)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: predict holdout")
	}
	observed, err := holdout.Labels()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: holdout labels")
	}
	report, err := evaluate.Evaluate(holdoutProbs, observed, p.cfg.Risk.OperationalThreshold, p.cfg.Evaluate.ROCResolution)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: evaluate")
	}

	cv, err := evaluate.CrossValidate(d, features, grid.ColInundated, p.cfg.CrossVal.Folds, p.cfg.CrossVal.Seed, p.cfg.Model)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: train: cross-validate")
	}
	report.CrossVal = cv

	// Score the full city for mapping.
	if _, err := logistic.Score(model, d); err != nil {
		return nil, eris.Wrap(err, "pipeline: train: score")
	}
	if err := risk.Apply(d, p.cfg.Risk.OperationalThreshold, p.cfg.Risk.Bins); err != nil {
		return nil, eris.Wrap(err, "pipeline: train: classify")
	}
	if err := risk.ApplyConfusion(d); err != nil {
		return nil, eris.Wrap(err, "pipeline: train: confusion types")
	}

	res := &TrainResult{Model: model, Report: report, Dataset: d}
	if p.st != nil {
		run, err := p.persistTrain(ctx, d, model, report)
		if err != nil {
			return nil, err
		}
		res.RunID = run.ID
	}

	log.Info("training run complete",
		zap.String("run_id", res.RunID),
		zap.Float64("holdout_accuracy", report.Accuracy),
		zap.Float64("auc", report.AUC),
		zap.Float64("cv_mean_accuracy", cv.MeanAccuracy),
		zap.Bool("converged", model.Converged),
	)
	return res, nil
}

// Transfer applies a trained model to the target city. The dataset is
// normalized against its own ranges and quantile-binned independently of
// the training city.
func (p *Pipeline) Transfer(ctx context.Context, model *logistic.TrainedModel, d *grid.Dataset) (*TransferResult, error) {
	log := zap.L().With(zap.String("city", d.City))

	if err := p.NormalizeDataset(d); err != nil {
		return nil, eris.Wrap(err, "pipeline: transfer: normalize")
	}
	if _, err := logistic.Score(model, d); err != nil {
		return nil, eris.Wrap(err, "pipeline: transfer: score")
	}
	if err := risk.Apply(d, p.cfg.Risk.OperationalThreshold, p.cfg.Risk.Bins); err != nil {
		return nil, eris.Wrap(err, "pipeline: transfer: classify")
	}

	res := &TransferResult{Dataset: d}
	if p.st != nil {
		run, err := p.st.CreateRun(ctx, store.RunKindTransfer, d.City)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: transfer: create run")
		}
		if _, err := p.st.SaveScoredCells(ctx, run.ID, d); err != nil {
			return nil, eris.Wrap(err, "pipeline: transfer: save cells")
		}
		res.RunID = run.ID
	}

	log.Info("transfer run complete",
		zap.String("run_id", res.RunID),
		zap.Int("cells", d.Len()),
	)
	return res, nil
}

func (p *Pipeline) persistTrain(ctx context.Context, d *grid.Dataset, model *logistic.TrainedModel, report *evaluate.Report) (*store.Run, error) {
	run, err := p.st.CreateRun(ctx, store.RunKindTrain, d.City)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	if err := p.st.SaveModel(ctx, run.ID, model); err != nil {
		return nil, eris.Wrap(err, "pipeline: save model")
	}
	if err := p.st.SaveReport(ctx, run.ID, report); err != nil {
		return nil, eris.Wrap(err, "pipeline: save report")
	}
	if _, err := p.st.SaveScoredCells(ctx, run.ID, d); err != nil {
		return nil, eris.Wrap(err, "pipeline: save cells")
	}
	return run, nil
}
