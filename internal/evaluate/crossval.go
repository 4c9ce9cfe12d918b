package evaluate

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
)

// CVThreshold is the fixed decision cutoff for cross-validation reporting.
// It is deliberately the conventional 0.5, not the operational mapping
// threshold: cross-validation measures model fit quality, not the
// sensitivity-weighted operational decision.
const CVThreshold = 0.5

// CVSummary holds per-fold and averaged cross-validation results. Fold
// order matches fold index, not completion order.
type CVSummary struct {
	Folds        int       `json:"folds"`
	MeanAccuracy float64   `json:"mean_accuracy"`
	MeanKappa    float64   `json:"mean_kappa"`
	KappaFolds   int       `json:"kappa_folds"` // folds where kappa was defined
	FoldAccuracy []float64 `json:"fold_accuracy"`
	FoldKappa    []float64 `json:"fold_kappa"`
}

// CrossValidate partitions the dataset into k disjoint near-equal folds
// (reproducible via seed), fits on each set of k-1 folds, and evaluates the
// held-out fold at the fixed 0.5 threshold. Folds fit concurrently; results
// merge by simple averaging, so completion order does not matter. Folds
// where kappa is undefined (a single-class holdout) are excluded from the
// kappa mean and counted in KappaFolds.
func CrossValidate(d *grid.Dataset, featureFields []string, labelField string, k int, seed int64, fitCfg logistic.FitConfig) (*CVSummary, error) {
	n := d.Len()
	if k < 2 {
		return nil, eris.Errorf("evaluate: crossval: k=%d, need at least 2 folds", k)
	}
	if k > n {
		return nil, eris.Errorf("evaluate: crossval: k=%d folds for %d rows", k, n)
	}
	if _, err := d.Values(labelField); err != nil {
		return nil, eris.Wrap(err, "evaluate: crossval")
	}

	// Round-robin over a seeded permutation gives fold sizes of floor(n/k)
	// or ceil(n/k).
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	for _, f := range folds {
		sort.Ints(f)
	}

	summary := &CVSummary{
		Folds:        k,
		FoldAccuracy: make([]float64, k),
		FoldKappa:    make([]float64, k),
	}
	var mu sync.Mutex

	var g errgroup.Group
	for f := 0; f < k; f++ {
		g.Go(func() error {
			var trainIdx []int
			for other, idx := range folds {
				if other != f {
					trainIdx = append(trainIdx, idx...)
				}
			}
			sort.Ints(trainIdx)

			train := d.Subset(trainIdx)
			test := d.Subset(folds[f])

			model, err := logistic.Fit(train, featureFields, labelField, fitCfg)
			if err != nil {
				return eris.Wrapf(err, "evaluate: crossval: fold %d fit", f)
			}
			probs, err := logistic.Predict(model, test)
			if err != nil {
				return eris.Wrapf(err, "evaluate: crossval: fold %d predict", f)
			}
			obs, err := test.Values(labelField)
			if err != nil {
				return eris.Wrapf(err, "evaluate: crossval: fold %d labels", f)
			}
			c, err := Tabulate(probs, obs, CVThreshold)
			if err != nil {
				return eris.Wrapf(err, "evaluate: crossval: fold %d", f)
			}

			mu.Lock()
			summary.FoldAccuracy[f] = c.Accuracy()
			summary.FoldKappa[f] = c.Kappa()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var accSum, kappaSum float64
	for f := 0; f < k; f++ {
		accSum += summary.FoldAccuracy[f]
		if !math.IsNaN(summary.FoldKappa[f]) {
			kappaSum += summary.FoldKappa[f]
			summary.KappaFolds++
		}
	}
	summary.MeanAccuracy = accSum / float64(k)
	if summary.KappaFolds > 0 {
		summary.MeanKappa = kappaSum / float64(summary.KappaFolds)
	} else {
		summary.MeanKappa = math.NaN()
	}

	zap.L().Info("cross-validation complete",
		zap.String("city", d.City),
		zap.Int("folds", k),
		zap.Float64("mean_accuracy", summary.MeanAccuracy),
		zap.Float64("mean_kappa", summary.MeanKappa),
	)
	return summary, nil
}
