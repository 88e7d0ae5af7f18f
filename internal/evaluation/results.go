package evaluation

import (
	"fmt"

	"habitatcv/internal/data"
	"habitatcv/internal/models"
)

// ResultRecord is one outer-test observation with its prediction. Row is
// the observation's position in the evaluated dataset.
type ResultRecord struct {
	Row         int
	Observation data.Observation
	Absence     float64
	Presence    float64
	Prediction  int
	Iteration   int
}

// FoldResult is everything one outer fold produced. It is built by a single
// goroutine and not modified afterwards.
type FoldResult struct {
	Iteration int
	Search    SearchResult
	Inner     ThresholdResult
	// InnerRows are the outer-train rows whose held-out inner predictions
	// were pooled to choose Threshold.
	InnerRows []int
	Threshold float64
	Model     *models.LogisticRegression
	Records   []ResultRecord
}

type Results struct {
	Folds      []FoldResult
	Records    []ResultRecord
	Thresholds []float64
	Summary    Summary
}

// Merge concatenates fold results in fold order and computes the pooled
// summary: one confusion matrix and one AUC over every record, not an
// average of per-fold values. n is the size of the evaluated dataset; each
// observation must appear exactly once.
func Merge(folds []FoldResult, n int) (*Results, error) {
	out := &Results{
		Folds:      folds,
		Records:    make([]ResultRecord, 0, n),
		Thresholds: make([]float64, len(folds)),
	}

	seen := make(map[int]int, n)
	for k, fold := range folds {
		out.Thresholds[k] = fold.Threshold
		for _, rec := range fold.Records {
			if rec.Row < 0 || rec.Row >= n {
				return nil, fmt.Errorf("result row %d outside dataset of %d", rec.Row, n)
			}
			if prev, dup := seen[rec.Row]; dup {
				return nil, fmt.Errorf("observation %s appears in outer folds %d and %d",
					rec.Observation.ID(), prev, fold.Iteration)
			}
			seen[rec.Row] = fold.Iteration
			out.Records = append(out.Records, rec)
		}
	}
	if len(out.Records) != n {
		return nil, fmt.Errorf("merged %d result rows, expected %d", len(out.Records), n)
	}

	labels := make([]int, len(out.Records))
	predictions := make([]int, len(out.Records))
	probs := make([]float64, len(out.Records))
	for i, rec := range out.Records {
		labels[i] = rec.Observation.Response
		predictions[i] = rec.Prediction
		probs[i] = rec.Presence
	}

	summary, err := Summarize(labels, predictions, probs)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize results: %w", err)
	}
	out.Summary = summary
	return out, nil
}
