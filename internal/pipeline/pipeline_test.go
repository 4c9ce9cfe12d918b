package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/config"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/store"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/study"
)

func testConfig() *config.Config {
	return &config.Config{
		Split:    config.SplitConfig{TrainFraction: 0.70, Seed: 42},
		Model:    logistic.DefaultFitConfig(),
		CrossVal: config.CrossValConfig{Folds: 5, Seed: 42},
		Risk:     config.RiskConfig{OperationalThreshold: 0.2, Bins: 5},
		Normalize: config.NormalizeConfig{
			ElevationRange: config.Range{Min: 0, Max: 300},
			FlowAccumRange: config.Range{Min: 0, Max: 10000},
		},
		Evaluate: config.EvaluateConfig{ROCResolution: 100},
		Store:    config.StoreConfig{Driver: "none"},
	}
}

// cityDataset simulates a raw city grid: low-lying cells near the river with
// high flow accumulation flood, the rest stay dry.
func cityDataset(city string, n int, seed int64, labeled bool) *grid.Dataset {
	rng := rand.New(rand.NewSource(seed))
	cells := make([]grid.Cell, n)
	for i := range cells {
		elev := 1000 + rng.Float64()*250 // raw meters; normalization rescales
		flow := rng.Float64() * 30000
		dist := rng.Float64() * 1500
		dev := rng.Float64() * 0.6

		c := grid.Cell{
			ID:               int64(i),
			Elevation:        elev,
			Slope:            rng.Float64() * 12,
			FlowAccumulation: flow,
			DistanceToRiver:  dist,
			Developed:        dev,
			Forest:           (1 - dev) * rng.Float64(),
			Grassland:        0.1,
		}
		if labeled {
			eta := 4.0 - 0.02*(elev-1000) + 0.0001*flow - 0.004*dist
			if rng.Float64() < 1/(1+math.Exp(-eta)) {
				c.Inundated = 1
			}
		}
		cells[i] = c
	}

	cols := append([]string(nil), grid.PredictorColumns...)
	if labeled {
		cols = append(cols, grid.ColInundated)
	}
	return grid.New(city, cells, cols)
}

func TestTrain_EndToEnd(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, nil)
	d := cityDataset("calgary", 1000, 7, true)

	res, err := p.Train(context.Background(), d, study.DefaultFeatures)
	require.NoError(t, err)

	require.NotNil(t, res.Model)
	assert.True(t, res.Model.Converged)
	assert.Equal(t, study.DefaultFeatures, res.Model.Features)
	assert.Empty(t, res.RunID)

	// 70/30 split: the holdout confusion covers 30% of the rows.
	require.NotNil(t, res.Report)
	assert.Equal(t, 300, res.Report.Confusion.N())
	assert.Equal(t, cfg.Risk.OperationalThreshold, res.Report.Threshold)
	assert.Greater(t, res.Report.AUC, 0.5)

	require.NotNil(t, res.Report.CrossVal)
	assert.Equal(t, 5, res.Report.CrossVal.Folds)

	// The full city comes back scored and classified.
	counts := map[int]int{}
	for i := range res.Dataset.Cells {
		c := &res.Dataset.Cells[i]
		assert.Greater(t, c.Probability, 0.0)
		assert.Less(t, c.Probability, 1.0)
		assert.NotEmpty(t, c.RiskLabel)
		assert.NotEmpty(t, c.ConfusionType)
		counts[c.RiskQuantile]++
	}
	for b := 1; b <= 5; b++ {
		assert.Equal(t, 200, counts[b], "quantile bin %d", b)
	}
}

func TestTrain_UnlabeledDataset(t *testing.T) {
	p := New(testConfig(), nil)
	d := cityDataset("portland", 100, 3, false)

	_, err := p.Train(context.Background(), d, study.DefaultFeatures)
	require.Error(t, err)
	assert.True(t, eris.Is(err, grid.ErrSchemaMismatch))
}

func TestTransfer_CrossCity(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, nil)

	calgary := cityDataset("calgary", 1000, 7, true)
	trained, err := p.Train(context.Background(), calgary, study.DefaultFeatures)
	require.NoError(t, err)

	// The target city has a different elevation regime and no labels; the
	// per-city normalization is what makes the model applicable at all.
	portland := cityDataset("portland", 600, 21, false)
	for i := range portland.Cells {
		portland.Cells[i].Elevation -= 900
	}

	res, err := p.Transfer(context.Background(), trained.Model, portland)
	require.NoError(t, err)

	counts := map[int]int{}
	for i := range res.Dataset.Cells {
		c := &res.Dataset.Cells[i]
		assert.Greater(t, c.Probability, 0.0)
		assert.Less(t, c.Probability, 1.0)
		assert.NotEmpty(t, c.RiskLabel)
		assert.Empty(t, c.ConfusionType)
		counts[c.RiskQuantile]++
	}
	for b := 1; b <= 5; b++ {
		assert.Equal(t, 120, counts[b], "quantile bin %d", b)
	}
}

func TestTrain_PersistsRun(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "flood.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	p := New(testConfig(), st)
	d := cityDataset("calgary", 500, 9, true)

	res, err := p.Train(ctx, d, study.DefaultFeatures)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunKindTrain, run.Kind)
	assert.Equal(t, "calgary", run.City)
	require.NotNil(t, run.Model)
	assert.Equal(t, res.Model.Features, run.Model.Features)
	require.NotNil(t, run.Report)
	assert.Equal(t, res.Report.Confusion, run.Report.Confusion)
}

func TestTransfer_PersistsRun(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "flood.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	p := New(testConfig(), st)
	calgary := cityDataset("calgary", 500, 9, true)
	trained, err := p.Train(ctx, calgary, study.DefaultFeatures)
	require.NoError(t, err)

	portland := cityDataset("portland", 300, 13, false)
	res, err := p.Transfer(ctx, trained.Model, portland)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunKindTransfer, run.Kind)
	assert.Nil(t, run.Model)
}

func TestLoadDataset_CSVByExtension(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("cell_id,elevation,slope,flow_accumulation,distance_to_river,developed,forest,grassland,inundated\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "%d,%d.5,2.0,%d,50.0,0.3,0.4,0.2,%d\n", i, 1000+i, 100*i, i%2)
	}
	path := filepath.Join(t.TempDir(), "calgary.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	d, err := LoadDataset(path, "calgary")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Len())
	assert.True(t, d.Labeled())
	assert.Equal(t, "calgary", d.City)
}

func TestLoadDataset_MissingShapefile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "absent.shp"), "portland")
	require.Error(t, err)
}

func TestNormalizeDataset_BothColumns(t *testing.T) {
	p := New(testConfig(), nil)
	d := cityDataset("calgary", 50, 5, false)

	require.NoError(t, p.NormalizeDataset(d))
	assert.True(t, d.Has(grid.ColNormalizedElevation))
	assert.True(t, d.Has(grid.ColNormalizedFlowAccum))

	elev, err := d.Values(grid.ColNormalizedElevation)
	require.NoError(t, err)
	for _, v := range elev {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 300.0)
	}
}
