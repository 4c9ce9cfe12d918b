package evaluate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabulate_CountsAndStrictThreshold(t *testing.T) {
	preds := []float64{0.9, 0.6, 0.5, 0.4, 0.1, 0.7}
	obs := []float64{1, 0, 1, 1, 0, 1}

	c, err := Tabulate(preds, obs, 0.5)
	require.NoError(t, err)

	// 0.5 is not strictly above the threshold, so that positive cell is a
	// false negative.
	assert.Equal(t, Confusion{TP: 2, FP: 1, TN: 1, FN: 2}, c)
	assert.Equal(t, len(preds), c.N())
}

func TestTabulate_LengthMismatch(t *testing.T) {
	_, err := Tabulate([]float64{0.5}, []float64{1, 0}, 0.5)
	require.Error(t, err)
}

func TestConfusion_Metrics(t *testing.T) {
	c := Confusion{TP: 40, FP: 10, TN: 35, FN: 15}

	assert.InDelta(t, 0.75, c.Accuracy(), 1e-12)
	assert.InDelta(t, 40.0/55.0, c.Sensitivity(), 1e-12)
	assert.InDelta(t, 35.0/45.0, c.Specificity(), 1e-12)

	// Kappa = (po - pe) / (1 - pe) with pe from the marginals.
	po := 0.75
	pe := (50.0*55.0 + 50.0*45.0) / (100.0 * 100.0)
	assert.InDelta(t, (po-pe)/(1-pe), c.Kappa(), 1e-12)
}

func TestConfusion_PerfectAgreement(t *testing.T) {
	c := Confusion{TP: 30, TN: 70}
	assert.InDelta(t, 1.0, c.Accuracy(), 1e-12)
	assert.InDelta(t, 1.0, c.Kappa(), 1e-12)
}

func TestConfusion_NaNSentinels(t *testing.T) {
	// No positive observations: sensitivity undefined, specificity fine.
	c := Confusion{TN: 90, FP: 10}
	assert.True(t, math.IsNaN(c.Sensitivity()))
	assert.InDelta(t, 0.9, c.Specificity(), 1e-12)

	// Everything in one cell: expected agreement is 1, kappa undefined.
	assert.True(t, math.IsNaN(Confusion{TN: 100}.Kappa()))

	// Empty matrix.
	var empty Confusion
	assert.True(t, math.IsNaN(empty.Accuracy()))
	assert.True(t, math.IsNaN(empty.Kappa()))
}

func TestEvaluate_BuildsReport(t *testing.T) {
	preds := []float64{0.95, 0.85, 0.75, 0.35, 0.25, 0.15}
	obs := []float64{1, 1, 1, 0, 0, 0}

	r, err := Evaluate(preds, obs, 0.2, DefaultROCResolution)
	require.NoError(t, err)

	assert.Equal(t, 0.2, r.Threshold)
	assert.Equal(t, r.Confusion.Accuracy(), r.Accuracy)
	assert.Equal(t, r.Confusion.Kappa(), r.Kappa)
	assert.InDelta(t, 1.0, r.AUC, 1e-12)
	assert.NotEmpty(t, r.ROC)
	assert.Nil(t, r.CrossVal)
}

func TestReport_JSONRoundTripWithNaN(t *testing.T) {
	r := &Report{
		Threshold:   0.2,
		Confusion:   Confusion{TN: 90, FP: 10},
		Accuracy:    0.9,
		Sensitivity: math.NaN(),
		Specificity: 0.9,
		Kappa:       math.NaN(),
		ROC:         []ROCPoint{{FPR: 0, TPR: 0}, {FPR: 1, TPR: 1}},
		AUC:         math.NaN(),
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sensitivity":null`)
	assert.Contains(t, string(data), `"specificity":0.9`)

	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.Sensitivity))
	assert.True(t, math.IsNaN(back.Kappa))
	assert.True(t, math.IsNaN(back.AUC))
	assert.Equal(t, r.Confusion, back.Confusion)
	assert.Equal(t, r.ROC, back.ROC)
	assert.InDelta(t, 0.9, back.Specificity, 1e-12)
}
