package risk

import (
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
)

func TestClassify_StrictThreshold(t *testing.T) {
	assert.False(t, Classify(0.19, DefaultOperationalThreshold))
	assert.False(t, Classify(0.2, DefaultOperationalThreshold))
	assert.True(t, Classify(0.21, DefaultOperationalThreshold))
}

func TestLabel_FiveBins(t *testing.T) {
	want := []string{"Very Low", "Low", "Moderate", "High", "Very High"}
	for i, w := range want {
		assert.Equal(t, w, Label(i+1, 5))
	}
}

func TestLabel_OtherBinCounts(t *testing.T) {
	assert.Equal(t, "Bin 1 of 4", Label(1, 4))
	assert.Equal(t, "Bin 7 of 10", Label(7, 10))
}

func TestQuantileBins_EqualCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	probs := make([]float64, 1000)
	for i := range probs {
		probs[i] = rng.Float64()
	}

	bins, err := QuantileBins(probs, 5)
	require.NoError(t, err)
	require.Len(t, bins, 1000)

	counts := map[int]int{}
	for _, b := range bins {
		counts[b]++
	}
	for b := 1; b <= 5; b++ {
		assert.Equal(t, 200, counts[b], "bin %d", b)
	}
}

func TestQuantileBins_UnevenCounts(t *testing.T) {
	probs := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}
	bins, err := QuantileBins(probs, 3)
	require.NoError(t, err)

	counts := map[int]int{}
	for _, b := range bins {
		counts[b]++
	}
	// 7 rows over 3 bins: the low bin takes the extra row.
	assert.Equal(t, 3, counts[1])
	assert.Equal(t, 2, counts[2])
	assert.Equal(t, 2, counts[3])
}

func TestQuantileBins_OrderedByProbability(t *testing.T) {
	probs := []float64{0.9, 0.1, 0.5, 0.7, 0.3}
	bins, err := QuantileBins(probs, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 1, 3, 4, 2}, bins)
}

func TestQuantileBins_TiesStableByInputOrder(t *testing.T) {
	// All tied: earlier rows land in lower bins, deterministically.
	probs := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	bins, err := QuantileBins(probs, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3}, bins)

	again, err := QuantileBins(probs, 3)
	require.NoError(t, err)
	assert.Equal(t, bins, again)
}

func TestQuantileBins_Errors(t *testing.T) {
	_, err := QuantileBins([]float64{0.1, 0.2}, 1)
	require.Error(t, err)

	_, err = QuantileBins([]float64{0.1, 0.2}, 3)
	require.Error(t, err)
}

func riskDataset(probs []float64, labeled bool) *grid.Dataset {
	cells := make([]grid.Cell, len(probs))
	for i, p := range probs {
		cells[i] = grid.Cell{ID: int64(i), Probability: p}
		if labeled && p > 0.5 {
			cells[i].Inundated = 1
		}
	}
	cols := []string{grid.ColProbability}
	if labeled {
		cols = append(cols, grid.ColInundated)
	}
	return grid.New("calgary", cells, cols)
}

func TestApply_WritesClassQuantileLabel(t *testing.T) {
	d := riskDataset([]float64{0.05, 0.15, 0.25, 0.55, 0.95}, false)

	require.NoError(t, Apply(d, DefaultOperationalThreshold, 5))

	assert.False(t, d.Cells[0].Class)
	assert.False(t, d.Cells[1].Class)
	assert.True(t, d.Cells[2].Class)
	assert.True(t, d.Cells[4].Class)

	assert.Equal(t, 1, d.Cells[0].RiskQuantile)
	assert.Equal(t, "Very Low", d.Cells[0].RiskLabel)
	assert.Equal(t, 5, d.Cells[4].RiskQuantile)
	assert.Equal(t, "Very High", d.Cells[4].RiskLabel)
}

func TestApply_MissingProbability(t *testing.T) {
	d := grid.New("portland", []grid.Cell{{ID: 1}}, nil)
	err := Apply(d, DefaultOperationalThreshold, 5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, grid.ErrSchemaMismatch))
}

func TestConfusionType(t *testing.T) {
	assert.Equal(t, "True Positive", ConfusionType(true, true))
	assert.Equal(t, "False Positive", ConfusionType(true, false))
	assert.Equal(t, "False Negative", ConfusionType(false, true))
	assert.Equal(t, "True Negative", ConfusionType(false, false))
}

func TestApplyConfusion(t *testing.T) {
	d := riskDataset([]float64{0.1, 0.3, 0.7, 0.9}, true)
	require.NoError(t, Apply(d, DefaultOperationalThreshold, 2))
	require.NoError(t, ApplyConfusion(d))

	assert.Equal(t, "True Negative", d.Cells[0].ConfusionType)  // 0.1: not flagged, dry
	assert.Equal(t, "False Positive", d.Cells[1].ConfusionType) // 0.3: flagged, dry
	assert.Equal(t, "True Positive", d.Cells[2].ConfusionType)
	assert.Equal(t, "True Positive", d.Cells[3].ConfusionType)
}

func TestApplyConfusion_Unlabeled(t *testing.T) {
	d := riskDataset([]float64{0.1, 0.9}, false)
	err := ApplyConfusion(d)
	require.Error(t, err)
	assert.True(t, eris.Is(err, grid.ErrSchemaMismatch))
}
