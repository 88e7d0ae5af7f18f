package evaluation

import (
	"fmt"
	"math/rand"
	"time"

	"habitatcv/internal/data"
)

// Fold holds row positions into the slice that was split. Train and Test
// are disjoint and together cover every row.
type Fold struct {
	Index int
	Train []int
	Test  []int
}

// StratifiedKFold partitions rows into K test folds that preserve the class
// ratio. Each class is shuffled independently and dealt round-robin, with
// the dealing position carried from one class to the next so fold sizes
// differ by at most one overall and per class.
type StratifiedKFold struct {
	nFolds  int
	shuffle bool
	rng     *rand.Rand
}

// NewStratifiedKFold builds a splitter. A nil rng with shuffle enabled is
// seeded from the clock, so the split is not reproducible.
func NewStratifiedKFold(nFolds int, shuffle bool, rng *rand.Rand) *StratifiedKFold {
	if shuffle && rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StratifiedKFold{
		nFolds:  nFolds,
		shuffle: shuffle,
		rng:     rng,
	}
}

// NewSeededStratifiedKFold is a shuffling splitter with a fixed seed.
func NewSeededStratifiedKFold(nFolds int, seed int64) *StratifiedKFold {
	return NewStratifiedKFold(nFolds, true, rand.New(rand.NewSource(seed)))
}

func (skf *StratifiedKFold) Split(y []int) ([]Fold, error) {
	if skf.nFolds < 2 {
		return nil, fmt.Errorf("%w: %d (must be at least 2)", ErrInvalidFolds, skf.nFolds)
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("%w: cannot split empty dataset", ErrInsufficientSamples)
	}

	classes := data.SortedClasses(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: only class %d present in %d rows", ErrDegenerateFold, classes[0], len(y))
	}

	classIndices := make(map[int][]int, len(classes))
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}

	for _, class := range classes {
		if n := len(classIndices[class]); n < skf.nFolds {
			return nil, fmt.Errorf("%w: class %d has %d members, fewer than %d folds",
				ErrInsufficientSamples, class, n, skf.nFolds)
		}
	}

	assignment := make([]int, len(y))
	next := 0
	for _, class := range classes {
		indices := classIndices[class]
		if skf.shuffle {
			skf.rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			assignment[idx] = next
			next = (next + 1) % skf.nFolds
		}
	}

	folds := make([]Fold, skf.nFolds)
	for k := range folds {
		folds[k].Index = k
	}
	for idx, k := range assignment {
		folds[k].Test = append(folds[k].Test, idx)
		for other := range folds {
			if other != k {
				folds[other].Train = append(folds[other].Train, idx)
			}
		}
	}

	return folds, nil
}

// Resolve maps fold positions back through rows, for folds computed on a
// subset of a larger dataset.
func (f Fold) Resolve(rows []int) Fold {
	out := Fold{
		Index: f.Index,
		Train: make([]int, len(f.Train)),
		Test:  make([]int, len(f.Test)),
	}
	for i, p := range f.Train {
		out.Train[i] = rows[p]
	}
	for i, p := range f.Test {
		out.Test[i] = rows[p]
	}
	return out
}
