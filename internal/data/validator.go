package data

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

func (dv *DataValidator) ValidateDataset(ds *Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return fmt.Errorf("%w: dataset is empty", ErrSchemaMismatch)
	}

	nFeatures := ds.NumPredictors()
	if nFeatures == 0 {
		return fmt.Errorf("%w: no predictors configured", ErrSchemaMismatch)
	}

	for i, obs := range ds.Observations {
		if len(obs.Predictors) != nFeatures {
			return fmt.Errorf("%w: inconsistent predictor count at observation %d: expected %d, got %d",
				ErrSchemaMismatch, i, nFeatures, len(obs.Predictors))
		}
		for j, value := range obs.Predictors {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return fmt.Errorf("%w: non-finite value at observation %d, predictor %s",
					ErrSchemaMismatch, i, ds.PredictorNames[j])
			}
		}
		if obs.Response != 0 && obs.Response != 1 {
			return fmt.Errorf("%w: observation %d has response %d", ErrSchemaMismatch, i, obs.Response)
		}
	}

	return nil
}

func (dv *DataValidator) ValidateLabels(y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := CountClasses(y)
	if len(classCount) < 2 {
		return fmt.Errorf("dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

// FeatureStats summarises one predictor column.
type FeatureStats struct {
	Name   string
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

type DatasetStats struct {
	Samples           int
	Features          int
	ClassDistribution map[int]int
	FeatureStats      []FeatureStats
}

func (dv *DataValidator) GetDatasetStats(ds *Dataset) (DatasetStats, error) {
	out := DatasetStats{
		Samples:           ds.Len(),
		Features:          ds.NumPredictors(),
		ClassDistribution: ds.ClassCounts(),
	}
	if ds.Len() == 0 {
		return out, nil
	}

	out.FeatureStats = make([]FeatureStats, ds.NumPredictors())
	for j, name := range ds.PredictorNames {
		values := stats.Float64Data(ds.Column(j))

		min, err := values.Min()
		if err != nil {
			return out, err
		}
		max, err := values.Max()
		if err != nil {
			return out, err
		}
		mean, err := values.Mean()
		if err != nil {
			return out, err
		}
		std, err := values.StandardDeviation()
		if err != nil {
			return out, err
		}

		out.FeatureStats[j] = FeatureStats{Name: name, Min: min, Max: max, Mean: mean, StdDev: std}
	}

	return out, nil
}
