package experiment

import (
	"fmt"

	"habitatcv/internal/data"

	"github.com/montanaflynn/stats"
)

// CorrelationMatrix is the pairwise Pearson correlation of predictors.
type CorrelationMatrix struct {
	Names  []string
	Values [][]float64
}

// Correlate computes the Pearson correlation between every pair of
// predictor columns of ds. A constant column correlates as 0 with every
// other column and 1 with itself.
func Correlate(ds *data.Dataset) (CorrelationMatrix, error) {
	p := ds.NumPredictors()
	if ds.Len() < 2 {
		return CorrelationMatrix{}, fmt.Errorf("%w: need at least 2 observations for correlation", data.ErrSchemaMismatch)
	}

	columns := make([]stats.Float64Data, p)
	constant := make([]bool, p)
	for j := range columns {
		columns[j] = ds.Column(j)
		variance, err := columns[j].Variance()
		if err != nil {
			return CorrelationMatrix{}, fmt.Errorf("variance of %s: %w", ds.PredictorNames[j], err)
		}
		constant[j] = variance == 0
	}

	values := make([][]float64, p)
	for i := range values {
		values[i] = make([]float64, p)
		values[i][i] = 1
	}
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			if constant[i] || constant[j] {
				continue
			}
			r, err := stats.Pearson(columns[i], columns[j])
			if err != nil {
				return CorrelationMatrix{}, fmt.Errorf("correlate %s with %s: %w",
					ds.PredictorNames[i], ds.PredictorNames[j], err)
			}
			values[i][j] = r
			values[j][i] = r
		}
	}

	return CorrelationMatrix{Names: ds.PredictorNames, Values: values}, nil
}
