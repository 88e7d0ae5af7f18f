package evaluation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"habitatcv/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededConfig(seed int64) NestedConfig {
	cfg := DefaultNestedConfig()
	cfg.InnerSeed = &seed
	cfg.Workers = 3
	return cfg
}

func TestNestedCrossValidationEndToEnd(t *testing.T) {
	ds := syntheticDataset(100, 12, 2, 42)
	require.Equal(t, map[int]int{0: 50, 1: 50}, ds.ClassCounts())

	res, err := NewNestedCrossValidator(seededConfig(7)).Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, res.Records, 100)
	require.Len(t, res.Folds, 5)
	require.Len(t, res.Thresholds, 5)

	seen := make(map[string]bool)
	for _, rec := range res.Records {
		assert.False(t, seen[rec.Observation.ID()], "duplicate %s", rec.Observation.ID())
		seen[rec.Observation.ID()] = true

		assert.GreaterOrEqual(t, rec.Presence, 0.0)
		assert.LessOrEqual(t, rec.Presence, 1.0)
		assert.InDelta(t, 1.0, rec.Absence+rec.Presence, 1e-12)
		assert.Contains(t, []int{0, 1}, rec.Prediction)
		assert.GreaterOrEqual(t, rec.Iteration, 1)
		assert.LessOrEqual(t, rec.Iteration, 5)

		threshold := res.Thresholds[rec.Iteration-1]
		assert.Equal(t, rec.Presence >= threshold, rec.Prediction == 1)
	}
	assert.Len(t, seen, 100)

	for k, fold := range res.Folds {
		assert.Equal(t, k+1, fold.Iteration)
		assert.Len(t, fold.Records, 20)
		assert.NotNil(t, fold.Model)
		assert.Greater(t, fold.Threshold, 0.0)
		assert.LessOrEqual(t, fold.Threshold, 1.0)
		assert.Equal(t, fold.Threshold, fold.Inner.Threshold)
	}

	assert.Equal(t, 100, res.Summary.N)
	assert.Equal(t, 100, res.Summary.Confusion.Total())
	assert.Greater(t, res.Summary.AUC, 0.7)
}

func TestNestedCrossValidationInnerPredictionsCoverOuterTrain(t *testing.T) {
	ds := syntheticDataset(60, 4, 2, 11)
	cfg := seededConfig(5)

	res, err := NewNestedCrossValidator(cfg).Run(context.Background(), ds)
	require.NoError(t, err)

	outer, err := NewSeededStratifiedKFold(cfg.OuterFolds, cfg.OuterSeed).Split(ds.Labels())
	require.NoError(t, err)

	for k, fold := range res.Folds {
		assert.Len(t, fold.InnerRows, len(outer[k].Train), "fold %d", fold.Iteration)
		assert.ElementsMatch(t, outer[k].Train, fold.InnerRows, "fold %d", fold.Iteration)

		tested := make(map[int]bool, len(fold.Records))
		for _, rec := range fold.Records {
			tested[rec.Row] = true
		}
		for _, row := range fold.InnerRows {
			assert.False(t, tested[row], "row %d is both outer-test and inner-pooled", row)
		}
	}
}

func TestNestedCrossValidationSeededIsReproducible(t *testing.T) {
	ds := syntheticDataset(60, 4, 2, 9)

	a, err := NewNestedCrossValidator(seededConfig(1)).Run(context.Background(), ds)
	require.NoError(t, err)
	b, err := NewNestedCrossValidator(seededConfig(1)).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, a.Thresholds, b.Thresholds)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestNestedCrossValidationPooledSummary(t *testing.T) {
	ds := syntheticDataset(60, 4, 2, 10)
	res, err := NewNestedCrossValidator(seededConfig(2)).Run(context.Background(), ds)
	require.NoError(t, err)

	labels := make([]int, len(res.Records))
	preds := make([]int, len(res.Records))
	probs := make([]float64, len(res.Records))
	for i, rec := range res.Records {
		labels[i] = rec.Observation.Response
		preds[i] = rec.Prediction
		probs[i] = rec.Presence
	}
	want, err := Summarize(labels, preds, probs)
	require.NoError(t, err)
	assert.Equal(t, want, res.Summary)
}

func TestNestedCrossValidationErrors(t *testing.T) {
	t.Run("degenerate labels", func(t *testing.T) {
		ds := syntheticDataset(40, 3, 1, 3)
		for i := range ds.Observations {
			ds.Observations[i].Response = 1
		}
		_, err := NewNestedCrossValidator(seededConfig(1)).Run(context.Background(), ds)
		assert.True(t, errors.Is(err, ErrDegenerateFold), "got %v", err)
	})

	t.Run("too few presences", func(t *testing.T) {
		ds := syntheticDataset(40, 3, 1, 4)
		kept := &data.Dataset{PredictorNames: ds.PredictorNames}
		for _, obs := range ds.Observations {
			if obs.Response == 0 || obs.Index < 8 {
				kept.Observations = append(kept.Observations, obs)
			}
		}
		_, err := NewNestedCrossValidator(seededConfig(1)).Run(context.Background(), kept)
		assert.True(t, errors.Is(err, ErrInsufficientSamples), "got %v", err)
	})

	t.Run("invalid inner folds", func(t *testing.T) {
		cfg := seededConfig(1)
		cfg.InnerFolds = 1
		_, err := NewNestedCrossValidator(cfg).Run(context.Background(), syntheticDataset(40, 3, 1, 5))
		assert.True(t, errors.Is(err, ErrInvalidFolds), "got %v", err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewNestedCrossValidator(seededConfig(1)).Run(ctx, syntheticDataset(40, 3, 1, 6))
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

func TestNestedCrossValidationProgress(t *testing.T) {
	var mu sync.Mutex
	var calls []int

	cv := NewNestedCrossValidator(seededConfig(4))
	cv.OnProgress(func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, total)
		calls = append(calls, completed)
	})

	_, err := cv.Run(context.Background(), syntheticDataset(50, 3, 2, 8))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestMergeRejectsDuplicates(t *testing.T) {
	obs := data.Observation{MooseYearID: "M1", FullPathID: "p1", Response: 1}
	folds := []FoldResult{
		{Iteration: 1, Records: []ResultRecord{{Row: 0, Observation: obs}}},
		{Iteration: 2, Records: []ResultRecord{{Row: 0, Observation: obs}}},
	}
	_, err := Merge(folds, 2)
	assert.Error(t, err)

	_, err = Merge(folds[:1], 2)
	assert.Error(t, err)
}
