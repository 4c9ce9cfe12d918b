package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	city       TEXT NOT NULL,
	model      TEXT,
	report     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scored_cells (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	cell_id        INTEGER NOT NULL,
	city           TEXT NOT NULL,
	probability    REAL NOT NULL,
	predicted_class INTEGER NOT NULL,
	risk_quantile  INTEGER NOT NULL,
	risk_label     TEXT NOT NULL,
	confusion_type TEXT,
	PRIMARY KEY (run_id, cell_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_city ON runs(city);
CREATE INDEX IF NOT EXISTS idx_scored_cells_run_id ON scored_cells(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind RunKind, city string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, city, created_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), city, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Kind: kind, City: city, CreatedAt: now}, nil
}

func (s *SQLiteStore) SaveModel(ctx context.Context, runID string, m *logistic.TrainedModel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal model")
	}
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET model = ? WHERE id = ?`, string(data), runID)
	return eris.Wrap(err, "sqlite: save model")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, r *evaluate.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET report = ? WHERE id = ?`, string(data), runID)
	return eris.Wrap(err, "sqlite: save report")
}

func (s *SQLiteStore) SaveScoredCells(ctx context.Context, runID string, d *grid.Dataset) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scored_cells (run_id, cell_id, city, probability, predicted_class, risk_quantile, risk_label, confusion_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare scored cells")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i := range d.Cells {
		if _, err := stmt.ExecContext(ctx, scoredCellRow(runID, d.City, &d.Cells[i])...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert cell %d", d.Cells[i].ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit scored cells")
	}
	return n, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, city, model, report, created_at FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, city, model, report, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var kind string
	var model, report sql.NullString
	if err := row.Scan(&r.ID, &kind, &r.City, &model, &report, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = RunKind(kind)
	if model.Valid {
		if err := json.Unmarshal([]byte(model.String), &r.Model); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse stored model")
		}
	}
	if report.Valid {
		if err := json.Unmarshal([]byte(report.String), &r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse stored report")
		}
	}
	return &r, nil
}
