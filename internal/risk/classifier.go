// Package risk turns model probabilities into the categorical outputs the
// mapping step consumes: a thresholded binary class, an equal-count risk
// quantile with an ordinal label, and (for the labeled city) the confusion
// type of each cell.
package risk

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
)

// The two decision thresholds are distinct on purpose and must stay that
// way. The operational threshold trades false alarms for sensitivity,
// because an unmapped flood zone costs more than an over-painted one; the
// cross-validation threshold is the conventional 0.5 used for reporting fit
// quality (see evaluate.CVThreshold).
const (
	DefaultOperationalThreshold = 0.2
	DefaultBins                 = 5
)

// fiveBinLabels are the canonical ordinal labels for the default binning.
var fiveBinLabels = [...]string{"Very Low", "Low", "Moderate", "High", "Very High"}

// Classify is the binary decision: strictly above the threshold.
func Classify(probability, threshold float64) bool {
	return probability > threshold
}

// Label returns the ordinal label for a 1-based bin.
func Label(bin, bins int) string {
	if bins == len(fiveBinLabels) {
		return fiveBinLabels[bin-1]
	}
	return fmt.Sprintf("Bin %d of %d", bin, bins)
}

// QuantileBins ranks the probabilities and splits them into bins equal-count
// groups, returning each row's 1-based bin. Ties are broken by stable input
// order, so binning is deterministic. Bin sizes are floor(n/bins) or
// ceil(n/bins) and every row lands in exactly one bin.
//
// Quantiles are relative to the given slice only: each city's distribution
// is binned independently, since absolute probability ranges differ between
// cities.
func QuantileBins(probabilities []float64, bins int) ([]int, error) {
	n := len(probabilities)
	if bins < 2 {
		return nil, eris.Errorf("risk: %d bins, need at least 2", bins)
	}
	if n < bins {
		return nil, eris.Errorf("risk: %d rows for %d bins", n, bins)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probabilities[order[a]] < probabilities[order[b]]
	})

	// First n%bins bins take the extra row.
	base, extra := n/bins, n%bins
	out := make([]int, n)
	rank := 0
	for b := 1; b <= bins; b++ {
		size := base
		if b <= extra {
			size++
		}
		for j := 0; j < size; j++ {
			out[order[rank]] = b
			rank++
		}
	}
	return out, nil
}

// Apply writes predicted_class, risk_quantile, and risk_label onto every
// cell from its predicted probability.
func Apply(d *grid.Dataset, threshold float64, bins int) error {
	probs, err := d.Values(grid.ColProbability)
	if err != nil {
		return eris.Wrap(err, "risk: apply")
	}
	quantiles, err := QuantileBins(probs, bins)
	if err != nil {
		return eris.Wrapf(err, "risk: apply to %s", d.City)
	}
	for i := range d.Cells {
		c := &d.Cells[i]
		c.Class = Classify(c.Probability, threshold)
		c.RiskQuantile = quantiles[i]
		c.RiskLabel = Label(quantiles[i], bins)
	}
	return nil
}

// ConfusionType names the cell's confusion-matrix quadrant.
func ConfusionType(predicted, observed bool) string {
	switch {
	case predicted && observed:
		return "True Positive"
	case predicted && !observed:
		return "False Positive"
	case !predicted && observed:
		return "False Negative"
	default:
		return "True Negative"
	}
}

// ApplyConfusion writes each cell's confusion type. Only meaningful for the
// labeled training city.
func ApplyConfusion(d *grid.Dataset) error {
	if !d.Labeled() {
		return eris.Wrapf(grid.ErrSchemaMismatch, "risk: confusion types need the %s column", grid.ColInundated)
	}
	for i := range d.Cells {
		c := &d.Cells[i]
		c.ConfusionType = ConfusionType(c.Class, c.Inundated > 0)
	}
	return nil
}
