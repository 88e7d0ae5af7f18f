package evaluation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"habitatcv/internal/data"
	"habitatcv/internal/models"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"
)

// ParamGrid lists the values tried for each hyperparameter.
type ParamGrid struct {
	Penalties []string  `yaml:"penalty"`
	C         []float64 `yaml:"c"`
	Solvers   []string  `yaml:"solver"`
}

// DefaultParamGrid is one penalty, a two-point C range and one solver.
func DefaultParamGrid() ParamGrid {
	return ParamGrid{
		Penalties: []string{models.PenaltyL1},
		C:         []float64{0.001, 10},
		Solvers:   []string{models.SolverFISTA},
	}
}

// Expand returns the Cartesian product in penalty, C, solver order.
func (g ParamGrid) Expand() []models.Params {
	var out []models.Params
	for _, penalty := range g.Penalties {
		for _, c := range g.C {
			for _, solver := range g.Solvers {
				out = append(out, models.Params{Penalty: penalty, C: c, Solver: solver})
			}
		}
	}
	return out
}

type CandidateScore struct {
	Params models.Params `yaml:"params"`
	Scores []float64     `yaml:"scores"`
	Mean   float64       `yaml:"mean"`
	Std    float64       `yaml:"std"`
}

type SearchResult struct {
	Best       models.Params    `yaml:"best"`
	BestScore  float64          `yaml:"best_score"`
	Candidates []CandidateScore `yaml:"candidates"`
}

// GridSearch selects the candidate with the highest mean ROC-AUC across
// stratified folds. Ties go to the first candidate in grid order.
type GridSearch struct {
	Grid   ParamGrid
	Folds  int
	Config models.ModelConfig
}

func NewGridSearch(grid ParamGrid, folds int, config models.ModelConfig) *GridSearch {
	return &GridSearch{Grid: grid, Folds: folds, Config: config}
}

// Search runs the grid over the given rows of ds. rng drives the fold
// shuffle; nil seeds it from the clock.
func (gs *GridSearch) Search(ds *data.Dataset, rows []int, rng *rand.Rand) (SearchResult, error) {
	candidates := gs.Grid.Expand()
	if len(candidates) == 0 {
		return SearchResult{}, fmt.Errorf("parameter grid is empty")
	}

	folds, err := NewStratifiedKFold(gs.Folds, true, rng).Split(ds.LabelsAt(rows))
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to split search folds: %w", err)
	}

	result := SearchResult{Candidates: make([]CandidateScore, len(candidates))}
	bestIdx := -1

	for ci, params := range candidates {
		scores := make([]float64, len(folds))
		for fi, fold := range folds {
			fold = fold.Resolve(rows)
			score, err := gs.scoreFold(ds, params, fold)
			if err != nil {
				return SearchResult{}, fmt.Errorf("candidate %s fold %d failed: %w", params, fi, err)
			}
			scores[fi] = score
		}

		mean, err := stats.Mean(scores)
		if err != nil {
			return SearchResult{}, err
		}
		std, err := stats.StandardDeviationSample(scores)
		if err != nil || math.IsNaN(std) {
			std = 0
		}

		result.Candidates[ci] = CandidateScore{Params: params, Scores: scores, Mean: mean, Std: std}
		log.Debug().
			Str("params", params.String()).
			Float64("mean_auc", mean).
			Float64("std_auc", std).
			Msg("grid candidate scored")

		if bestIdx < 0 || mean > result.Candidates[bestIdx].Mean {
			bestIdx = ci
		}
	}

	result.Best = result.Candidates[bestIdx].Params
	result.BestScore = result.Candidates[bestIdx].Mean
	return result, nil
}

func (gs *GridSearch) scoreFold(ds *data.Dataset, params models.Params, fold Fold) (float64, error) {
	probs, err := fitPredict(ds, gs.Config.WithParams(params), fold)
	if err != nil {
		return 0, err
	}
	return AUC(probs, ds.LabelsAt(fold.Test))
}

// fitPredict trains on fold.Train and returns presence probabilities for
// fold.Test.
func fitPredict(ds *data.Dataset, config models.ModelConfig, fold Fold) ([]float64, error) {
	model, err := fitModel(ds, config, fold.Train)
	if err != nil {
		return nil, err
	}
	proba, err := model.PredictProba(ds.Matrix(fold.Test))
	if err != nil {
		return nil, err
	}
	return models.PresenceColumn(proba), nil
}

func fitModel(ds *data.Dataset, config models.ModelConfig, rows []int) (*models.LogisticRegression, error) {
	model, err := models.CreateModel(config)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(ds.Matrix(rows), ds.LabelsAt(rows)); err != nil {
		if errors.Is(err, models.ErrSingleClass) {
			return nil, fmt.Errorf("%w: %v", ErrDegenerateFold, err)
		}
		return nil, err
	}
	return model, nil
}
