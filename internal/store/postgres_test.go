package store

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := testPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := testPostgres(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "train", "calgary", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), RunKindTrain, "calgary")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "calgary", run.City)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveModelAndReport(t *testing.T) {
	s, mock := testPostgres(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE runs SET model").
		WithArgs(pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE runs SET report").
		WithArgs(pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SaveModel(ctx, "run-1", testModel()))
	require.NoError(t, s.SaveReport(ctx, "run-1", testReport()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveScoredCells(t *testing.T) {
	s, mock := testPostgres(t)

	mock.ExpectCopyFrom(pgx.Identifier{"scored_cells"}, scoredCellColumns).
		WillReturnResult(3)

	n, err := s.SaveScoredCells(context.Background(), "run-1", scoredDataset())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := testPostgres(t)

	report, err := json.Marshal(testReport())
	require.NoError(t, err)
	model, err := json.Marshal(testModel())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, kind, city, model, report, created_at FROM runs WHERE").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "kind", "city", "model", "report", "created_at"},
		).AddRow("run-1", "train", "calgary", model, report, time.Now().UTC()))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunKindTrain, run.Kind)
	require.NotNil(t, run.Model)
	assert.True(t, run.Model.Converged)
	require.NotNil(t, run.Report)
	assert.True(t, math.IsNaN(run.Report.Specificity))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRunMissing(t *testing.T) {
	s, mock := testPostgres(t)

	mock.ExpectQuery("SELECT id, kind, city, model, report, created_at FROM runs WHERE").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := testPostgres(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, kind, city, model, report, created_at FROM runs ORDER BY").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "kind", "city", "model", "report", "created_at"},
		).
			AddRow("run-2", "transfer", "portland", []byte(nil), []byte(nil), now).
			AddRow("run-1", "train", "calgary", []byte(nil), []byte(nil), now.Add(-time.Hour)))

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, RunKindTransfer, runs[0].Kind)
	assert.Nil(t, runs[0].Model)
	require.NoError(t, mock.ExpectationsWereMet())
}
