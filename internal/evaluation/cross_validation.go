package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"habitatcv/internal/data"
	"habitatcv/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// NestedConfig drives one nested cross-validation run.
type NestedConfig struct {
	OuterFolds int
	InnerFolds int
	// SearchFolds is the fold count of the hyperparameter search inside each
	// outer-train partition. Zero means InnerFolds.
	SearchFolds int
	OuterSeed   int64
	// InnerSeed fixes the inner and search splits. When nil the inner
	// splits are seeded from the clock and differ between runs.
	InnerSeed *int64
	Workers   int
	Grid      ParamGrid
	Model     models.ModelConfig
}

func DefaultNestedConfig() NestedConfig {
	return NestedConfig{
		OuterFolds: 5,
		InnerFolds: 5,
		OuterSeed:  314,
		Workers:    runtime.NumCPU(),
		Grid:       DefaultParamGrid(),
		Model:      models.DefaultConfig(),
	}
}

func (c NestedConfig) searchFolds() int {
	if c.SearchFolds > 0 {
		return c.SearchFolds
	}
	return c.InnerFolds
}

// ProgressFunc is called after each outer fold completes. It may be called
// from several goroutines at once.
type ProgressFunc func(completed, total int)

type NestedCrossValidator struct {
	cfg      NestedConfig
	progress ProgressFunc
}

func NewNestedCrossValidator(cfg NestedConfig) *NestedCrossValidator {
	return &NestedCrossValidator{cfg: cfg}
}

func (cv *NestedCrossValidator) OnProgress(fn ProgressFunc) {
	cv.progress = fn
}

// Run evaluates the classifier on ds. Outer folds run concurrently; each
// builds its own FoldResult and the results are merged once every fold has
// finished. Any fold error cancels the rest and no results are returned.
func (cv *NestedCrossValidator) Run(ctx context.Context, ds *data.Dataset) (*Results, error) {
	if cv.cfg.InnerFolds < 2 || cv.cfg.searchFolds() < 2 {
		return nil, fmt.Errorf("%w: inner %d, search %d", ErrInvalidFolds, cv.cfg.InnerFolds, cv.cfg.searchFolds())
	}

	folds, err := NewSeededStratifiedKFold(cv.cfg.OuterFolds, cv.cfg.OuterSeed).Split(ds.Labels())
	if err != nil {
		return nil, fmt.Errorf("failed to split outer folds: %w", err)
	}

	rngs := make([]*rand.Rand, len(folds))
	for k := range folds {
		seed := time.Now().UnixNano() + int64(k)
		if cv.cfg.InnerSeed != nil {
			seed = *cv.cfg.InnerSeed + int64(k)
		}
		rngs[k] = rand.New(rand.NewSource(seed))
	}

	workers := cv.cfg.Workers
	if workers <= 0 || workers > len(folds) {
		workers = len(folds)
	}

	results := make([]FoldResult, len(folds))
	var completed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k, fold := range folds {
		g.Go(func() error {
			res, err := cv.runFold(gctx, ds, fold, len(folds), rngs[k])
			if err != nil {
				return fmt.Errorf("outer fold %d failed: %w", k+1, err)
			}
			results[k] = res
			done := completed.Add(1)
			if cv.progress != nil {
				cv.progress(int(done), len(folds))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(results, ds.Len())
}

func (cv *NestedCrossValidator) runFold(ctx context.Context, ds *data.Dataset, fold Fold, total int, rng *rand.Rand) (FoldResult, error) {
	iteration := fold.Index + 1
	logger := log.With().Int("iteration", iteration).Int("of", total).Logger()
	logger.Info().
		Int("train", len(fold.Train)).
		Int("test", len(fold.Test)).
		Msg("conducting outer cross-validation iteration")

	if err := ctx.Err(); err != nil {
		return FoldResult{}, err
	}

	start := time.Now()
	search, err := NewGridSearch(cv.cfg.Grid, cv.cfg.searchFolds(), cv.cfg.Model).Search(ds, fold.Train, rng)
	if err != nil {
		return FoldResult{}, fmt.Errorf("hyperparameter search: %w", err)
	}
	best := cv.cfg.Model.WithParams(search.Best)
	logger.Info().
		Str("params", search.Best.String()).
		Float64("mean_auc", search.BestScore).
		Dur("elapsed", time.Since(start)).
		Msg("optimized classifier hyperparameters")

	if err := ctx.Err(); err != nil {
		return FoldResult{}, err
	}

	start = time.Now()
	inner, innerRows, err := cv.innerThreshold(ds, fold, best, rng)
	if err != nil {
		return FoldResult{}, fmt.Errorf("threshold optimization: %w", err)
	}
	logger.Info().
		Float64("threshold", inner.Threshold).
		Float64("sensitivity", inner.Sensitivity).
		Float64("specificity", inner.Specificity).
		Dur("elapsed", time.Since(start)).
		Msg("optimized classification threshold")

	if err := ctx.Err(); err != nil {
		return FoldResult{}, err
	}

	start = time.Now()
	model, err := fitModel(ds, best, fold.Train)
	if err != nil {
		return FoldResult{}, fmt.Errorf("refit: %w", err)
	}
	logger.Info().Int("nonzero", model.NonZero()).Dur("elapsed", time.Since(start)).Msg("trained classifier")

	proba, err := model.PredictProba(ds.Matrix(fold.Test))
	if err != nil {
		return FoldResult{}, fmt.Errorf("predict outer test: %w", err)
	}

	records := make([]ResultRecord, len(fold.Test))
	for i, row := range fold.Test {
		presence := proba.At(i, 1)
		prediction := 0
		if presence >= inner.Threshold {
			prediction = 1
		}
		records[i] = ResultRecord{
			Row:         row,
			Observation: ds.Observations[row],
			Absence:     proba.At(i, 0),
			Presence:    presence,
			Prediction:  prediction,
			Iteration:   iteration,
		}
	}

	return FoldResult{
		Iteration: iteration,
		Search:    search,
		Inner:     inner,
		InnerRows: innerRows,
		Threshold: inner.Threshold,
		Model:     model,
		Records:   records,
	}, nil
}

// innerThreshold pools held-out predictions from an inner stratified split
// of the outer-train rows and optimises the threshold on them. The returned
// rows are the dataset rows behind the pooled predictions, in pooling order.
func (cv *NestedCrossValidator) innerThreshold(ds *data.Dataset, fold Fold, config models.ModelConfig, rng *rand.Rand) (ThresholdResult, []int, error) {
	innerFolds, err := NewStratifiedKFold(cv.cfg.InnerFolds, true, rng).Split(ds.LabelsAt(fold.Train))
	if err != nil {
		return ThresholdResult{}, nil, fmt.Errorf("failed to split inner folds: %w", err)
	}

	probs := make([]float64, 0, len(fold.Train))
	labels := make([]int, 0, len(fold.Train))
	rows := make([]int, 0, len(fold.Train))
	for _, inner := range innerFolds {
		inner = inner.Resolve(fold.Train)
		p, err := fitPredict(ds, config, inner)
		if err != nil {
			return ThresholdResult{}, nil, fmt.Errorf("inner fold %d: %w", inner.Index+1, err)
		}
		probs = append(probs, p...)
		labels = append(labels, ds.LabelsAt(inner.Test)...)
		rows = append(rows, inner.Test...)
	}
	if len(rows) != len(fold.Train) {
		return ThresholdResult{}, nil, fmt.Errorf("inner folds pooled %d rows, outer train has %d", len(rows), len(fold.Train))
	}

	res, err := OptimizeThreshold(probs, labels)
	if err != nil {
		return ThresholdResult{}, nil, err
	}
	return res, rows, nil
}
