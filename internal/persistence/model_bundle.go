package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"habitatcv/internal/evaluation"
	"habitatcv/internal/models"

	"gonum.org/v1/gonum/mat"
)

// FoldModel is the classifier refitted on one outer-train partition with
// the threshold chosen by its inner split.
type FoldModel struct {
	Iteration int
	Params    models.Params
	Threshold float64
	Model     *models.LogisticRegression
}

// Classify returns presence probabilities and 0/1 predictions at the fold's
// threshold.
func (fm FoldModel) Classify(X mat.Matrix) ([]float64, []int, error) {
	if fm.Model == nil {
		return nil, nil, models.ErrNotFitted
	}
	proba, err := fm.Model.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	presence := models.PresenceColumn(proba)
	return presence, evaluation.Binarize(presence, fm.Threshold), nil
}

type ModelBundle struct {
	Folds     []FoldModel
	Metadata  BundleMetadata
	CreatedAt time.Time
}

type BundleMetadata struct {
	RunID        string
	Dataset      string
	Predictors   []string
	Observations int
	Sensitivity  float64
	Specificity  float64
	AUC          float64
	Accuracy     float64
	TrainingTime time.Duration
}

func NewModelBundle(res *evaluation.Results, predictors []string) *ModelBundle {
	mb := &ModelBundle{
		Folds:     make([]FoldModel, len(res.Folds)),
		CreatedAt: time.Now(),
		Metadata: BundleMetadata{
			Predictors:   predictors,
			Observations: res.Summary.N,
			Sensitivity:  res.Summary.Sensitivity,
			Specificity:  res.Summary.Specificity,
			AUC:          res.Summary.AUC,
			Accuracy:     res.Summary.Accuracy,
		},
	}
	for k, fold := range res.Folds {
		mb.Folds[k] = FoldModel{
			Iteration: fold.Iteration,
			Params:    fold.Search.Best,
			Threshold: fold.Threshold,
			Model:     fold.Model,
		}
	}
	return mb
}

// Fold looks up the model of a 1-based outer iteration.
func (mb *ModelBundle) Fold(iteration int) (FoldModel, bool) {
	for _, fm := range mb.Folds {
		if fm.Iteration == iteration {
			return fm, true
		}
	}
	return FoldModel{}, false
}

func (mb *ModelBundle) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(mb); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	return file.Sync()
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var bundle ModelBundle
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}

	return &bundle, nil
}
