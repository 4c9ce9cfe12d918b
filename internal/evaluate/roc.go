package evaluate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// DefaultROCResolution is the default number of uniform threshold cuts for
// the reported curve. The trapezoidal AUC always uses the full-resolution
// curve over every distinct score, not this plotting grid.
const DefaultROCResolution = 100

// ROCPoint is one (false-positive-rate, true-positive-rate) pair.
type ROCPoint struct {
	FPR float64 `json:"fpr"`
	TPR float64 `json:"tpr"`
}

// Curve sweeps the decision threshold over a uniform grid of at least 50
// cuts spanning [0,1] (both boundaries included) and returns the resulting
// (fpr, tpr) pairs ordered by ascending fpr, then ascending tpr.
func Curve(predictions, observed []float64, resolution int) ([]ROCPoint, error) {
	if resolution < 50 {
		resolution = 50
	}
	if len(predictions) != len(observed) {
		return nil, eris.Errorf("evaluate: roc: %d predictions for %d observations", len(predictions), len(observed))
	}

	pos, neg := classCounts(observed)
	if pos == 0 || neg == 0 {
		return nil, eris.Errorf("evaluate: roc: need both classes, have %d positive and %d negative", pos, neg)
	}

	points := make([]ROCPoint, 0, resolution+1)
	for i := 0; i <= resolution; i++ {
		t := float64(i) / float64(resolution)
		c, err := Tabulate(predictions, observed, t)
		if err != nil {
			return nil, eris.Wrap(err, "evaluate: roc")
		}
		points = append(points, ROCPoint{
			FPR: float64(c.FP) / float64(neg),
			TPR: float64(c.TP) / float64(pos),
		})
	}

	sortROC(points)
	return points, nil
}

// AUC integrates the full-resolution ROC curve (every distinct score as a
// cut point) by the trapezoidal rule. Equivalent to the Mann-Whitney
// probability that a random positive outscores a random negative; NaN when
// either class is absent.
func AUC(predictions, observed []float64) (float64, error) {
	if len(predictions) != len(observed) {
		return 0, eris.Errorf("evaluate: auc: %d predictions for %d observations", len(predictions), len(observed))
	}
	pos, neg := classCounts(observed)
	if pos == 0 || neg == 0 {
		return math.NaN(), nil
	}

	// Sweep thresholds at every distinct score, descending, starting above
	// the maximum (nothing classified positive) and ending below the
	// minimum (everything positive).
	type labeled struct {
		score float64
		pos   bool
	}
	rows := make([]labeled, len(predictions))
	for i := range predictions {
		rows[i] = labeled{predictions[i], observed[i] > 0}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score > rows[j].score })

	var auc float64
	var tp, fp int
	prevFPR, prevTPR := 0.0, 0.0
	i := 0
	for i < len(rows) {
		// Consume all rows tied at this score together; a threshold can
		// only fall between distinct scores.
		s := rows[i].score
		for i < len(rows) && rows[i].score == s {
			if rows[i].pos {
				tp++
			} else {
				fp++
			}
			i++
		}
		fpr := float64(fp) / float64(neg)
		tpr := float64(tp) / float64(pos)
		auc += (fpr - prevFPR) * (tpr + prevTPR) / 2
		prevFPR, prevTPR = fpr, tpr
	}
	return auc, nil
}

// MannWhitneyAUC computes the same quantity from average ranks, as an
// independent cross-check on the trapezoidal form.
func MannWhitneyAUC(predictions, observed []float64) (float64, error) {
	if len(predictions) != len(observed) {
		return 0, eris.Errorf("evaluate: auc: %d predictions for %d observations", len(predictions), len(observed))
	}
	pos, neg := classCounts(observed)
	if pos == 0 || neg == 0 {
		return math.NaN(), nil
	}

	idx := make([]int, len(predictions))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return predictions[idx[a]] < predictions[idx[b]] })

	// Average ranks over ties, then U = R_pos - n_pos(n_pos+1)/2.
	ranks := make([]float64, len(predictions))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && predictions[idx[j]] == predictions[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var rankSum float64
	for i, o := range observed {
		if o > 0 {
			rankSum += ranks[i]
		}
	}
	u := rankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg)), nil
}

func classCounts(observed []float64) (pos, neg int) {
	for _, o := range observed {
		if o > 0 {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

func sortROC(points []ROCPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].FPR != points[j].FPR {
			return points[i].FPR < points[j].FPR
		}
		return points[i].TPR < points[j].TPR
	})
}
