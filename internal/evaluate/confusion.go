// Package evaluate computes validation metrics for the flood risk model:
// confusion-matrix statistics at a decision threshold, ROC curves with
// trapezoidal AUC, and k-fold cross-validated accuracy and kappa.
//
// Rate metrics with a zero denominator (no positive observations, say) are
// reported as NaN sentinels rather than errors, so callers can detect and
// display them without the pipeline aborting.
package evaluate

import (
	"math"

	"github.com/rotisserie/eris"
)

// Confusion holds the 2x2 counts at one decision threshold.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// N is the total number of classified observations.
func (c Confusion) N() int { return c.TP + c.FP + c.TN + c.FN }

// Accuracy is (TP+TN)/N, NaN for an empty matrix.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.N())
}

// Sensitivity is TP/(TP+FN), NaN when there are no positive observations.
func (c Confusion) Sensitivity() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// Specificity is TN/(TN+FP), NaN when there are no negative observations.
func (c Confusion) Specificity() float64 {
	return ratio(c.TN, c.TN+c.FP)
}

// Kappa is Cohen's kappa from the 2x2 marginal proportions, NaN when
// expected agreement is 1.
func (c Confusion) Kappa() float64 {
	n := float64(c.N())
	if n == 0 {
		return math.NaN()
	}
	po := float64(c.TP+c.TN) / n
	pe := (float64(c.TP+c.FP)*float64(c.TP+c.FN) + float64(c.FN+c.TN)*float64(c.FP+c.TN)) / (n * n)
	if pe == 1 {
		return math.NaN()
	}
	return (po - pe) / (1 - pe)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}

// Tabulate classifies each prediction as positive when strictly above the
// threshold and counts agreement against the observed labels.
func Tabulate(predictions, observed []float64, threshold float64) (Confusion, error) {
	if len(predictions) != len(observed) {
		return Confusion{}, eris.Errorf("evaluate: %d predictions for %d observations", len(predictions), len(observed))
	}
	var c Confusion
	for i, p := range predictions {
		pos := p > threshold
		obs := observed[i] > 0
		switch {
		case pos && obs:
			c.TP++
		case pos && !obs:
			c.FP++
		case !pos && obs:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Report is the immutable result of one evaluation run.
type Report struct {
	Threshold   float64    `json:"threshold"`
	Confusion   Confusion  `json:"confusion"`
	Accuracy    float64    `json:"accuracy"`
	Sensitivity float64    `json:"sensitivity"`
	Specificity float64    `json:"specificity"`
	Kappa       float64    `json:"kappa"`
	ROC         []ROCPoint `json:"roc"`
	AUC         float64    `json:"auc"`
	CrossVal    *CVSummary `json:"cross_validation,omitempty"`
}

// Evaluate builds a full report at the given threshold: confusion metrics,
// a ROC curve at the given sweep resolution, and trapezoidal AUC over the
// full-resolution curve.
func Evaluate(predictions, observed []float64, threshold float64, rocResolution int) (*Report, error) {
	c, err := Tabulate(predictions, observed, threshold)
	if err != nil {
		return nil, err
	}
	curve, err := Curve(predictions, observed, rocResolution)
	if err != nil {
		return nil, err
	}
	auc, err := AUC(predictions, observed)
	if err != nil {
		return nil, err
	}
	return &Report{
		Threshold:   threshold,
		Confusion:   c,
		Accuracy:    c.Accuracy(),
		Sensitivity: c.Sensitivity(),
		Specificity: c.Specificity(),
		Kappa:       c.Kappa(),
		ROC:         curve,
		AUC:         auc,
	}, nil
}
