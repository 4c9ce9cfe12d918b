package grid

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// Split partitions the dataset into disjoint train and test subsets whose
// union is exactly the input. The partition is a seeded random permutation:
// identical (dataset, labelField, trainFraction, seed) always yields
// identical partitions. Cell order within each partition follows input
// order.
//
// Returns ErrDegenerateSplit when either partition contains zero
// positive-label rows; callers should retry with another seed or fraction.
func Split(d *Dataset, labelField string, trainFraction float64, seed int64) (train, test *Dataset, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, eris.Errorf("grid: split: train fraction %g outside (0,1)", trainFraction)
	}
	labels, err := d.Values(labelField)
	if err != nil {
		return nil, nil, eris.Wrap(err, "grid: split")
	}
	n := d.Len()
	if n < 2 {
		return nil, nil, eris.Errorf("grid: split: %d cells is too few to partition", n)
	}

	nTrain := int(math.Round(trainFraction * float64(n)))
	if nTrain < 1 {
		nTrain = 1
	}
	if nTrain > n-1 {
		nTrain = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	trainIdx := append([]int(nil), perm[:nTrain]...)
	testIdx := append([]int(nil), perm[nTrain:]...)
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	if err := checkPositives(labels, trainIdx, "train"); err != nil {
		return nil, nil, err
	}
	if err := checkPositives(labels, testIdx, "test"); err != nil {
		return nil, nil, err
	}

	return d.Subset(trainIdx), d.Subset(testIdx), nil
}

func checkPositives(labels []float64, indices []int, name string) error {
	for _, i := range indices {
		if labels[i] > 0 {
			return nil
		}
	}
	return eris.Wrapf(ErrDegenerateSplit, "grid: split: %s partition has no positive labels", name)
}
