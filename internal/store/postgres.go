package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/db"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; tests pass a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	city       TEXT NOT NULL,
	model      JSONB,
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scored_cells (
	run_id         UUID NOT NULL REFERENCES runs(id),
	cell_id        BIGINT NOT NULL,
	city           TEXT NOT NULL,
	probability    DOUBLE PRECISION NOT NULL,
	predicted_class BOOLEAN NOT NULL,
	risk_quantile  INTEGER NOT NULL,
	risk_label     TEXT NOT NULL,
	confusion_type TEXT,
	PRIMARY KEY (run_id, cell_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_city ON runs(city);
CREATE INDEX IF NOT EXISTS idx_scored_cells_run_id ON scored_cells(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind RunKind, city string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, city, created_at) VALUES ($1, $2, $3, $4)`,
		id, string(kind), city, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, Kind: kind, City: city, CreatedAt: now}, nil
}

func (s *PostgresStore) SaveModel(ctx context.Context, runID string, m *logistic.TrainedModel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model")
	}
	_, err = s.pool.Exec(ctx, `UPDATE runs SET model = $1 WHERE id = $2`, data, runID)
	return eris.Wrap(err, "postgres: save model")
}

func (s *PostgresStore) SaveReport(ctx context.Context, runID string, r *evaluate.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx, `UPDATE runs SET report = $1 WHERE id = $2`, data, runID)
	return eris.Wrap(err, "postgres: save report")
}

func (s *PostgresStore) SaveScoredCells(ctx context.Context, runID string, d *grid.Dataset) (int64, error) {
	rows := make([][]any, len(d.Cells))
	for i := range d.Cells {
		rows[i] = scoredCellRow(runID, d.City, &d.Cells[i])
	}
	n, err := db.CopyFrom(ctx, s.pool, "scored_cells", scoredCellColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy scored cells")
	}
	return n, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, city, model, report, created_at FROM runs WHERE id = $1`, runID)
	r, err := scanPGRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: run %s not found", runID)
		}
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, city, model, report, created_at FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func scanPGRun(row pgx.Row) (*Run, error) {
	var r Run
	var kind string
	var model, report []byte
	if err := row.Scan(&r.ID, &kind, &r.City, &model, &report, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Kind = RunKind(kind)
	if len(model) > 0 {
		if err := json.Unmarshal(model, &r.Model); err != nil {
			return nil, eris.Wrap(err, "postgres: parse stored model")
		}
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: parse stored report")
		}
	}
	return &r, nil
}
