// Package store persists pipeline runs: the fitted model, evaluation
// metrics, and scored grid cells for each train or transfer invocation.
// Two backends implement the same interface behind a config driver switch:
// SQLite for local work and Postgres for shared databases.
package store

import (
	"context"
	"time"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
)

// RunKind distinguishes the pipeline operations.
type RunKind string

const (
	RunKindTrain    RunKind = "train"
	RunKindTransfer RunKind = "transfer"
	RunKindCrossVal RunKind = "crossval"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`

	// Model is present for train runs, nil otherwise.
	Model *logistic.TrainedModel `json:"model,omitempty"`
	// Report is present when the run evaluated against observed labels.
	Report *evaluate.Report `json:"report,omitempty"`
}

// Store is the persistence interface for scored runs.
type Store interface {
	CreateRun(ctx context.Context, kind RunKind, city string) (*Run, error)
	SaveModel(ctx context.Context, runID string, m *logistic.TrainedModel) error
	SaveReport(ctx context.Context, runID string, r *evaluate.Report) error
	SaveScoredCells(ctx context.Context, runID string, d *grid.Dataset) (int64, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// scoredCellColumns is the column order shared by both backends when
// writing scored cells.
var scoredCellColumns = []string{
	"run_id", "cell_id", "city", "probability", "predicted_class",
	"risk_quantile", "risk_label", "confusion_type",
}

// scoredCellRow flattens a cell for insertion.
func scoredCellRow(runID string, city string, c *grid.Cell) []any {
	return []any{
		runID, c.ID, city, c.Probability, c.Class,
		c.RiskQuantile, c.RiskLabel, c.ConfusionType,
	}
}
