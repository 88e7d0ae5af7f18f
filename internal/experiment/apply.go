package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"

	"habitatcv/internal/data"
	"habitatcv/internal/persistence"

	"github.com/rs/zerolog/log"
)

// ApplicationFile holds the scores of a saved classifier over a path table.
const ApplicationFile = "application.csv"

// Application is a path table scored by one or more saved fold models.
// Presence and Prediction are indexed [fold][row].
type Application struct {
	Dataset    *data.Dataset
	Iterations []int
	Thresholds []float64
	Presence   [][]float64
	Prediction [][]int
}

// Apply scores every row of ds with the fold models of bundle. iteration
// selects one outer fold; zero applies all of them.
func Apply(bundle *persistence.ModelBundle, ds *data.Dataset, iteration int) (*Application, error) {
	if !slices.Equal(bundle.Metadata.Predictors, ds.PredictorNames) {
		return nil, fmt.Errorf("%w: classifier expects predictors %v, table has %v",
			data.ErrSchemaMismatch, bundle.Metadata.Predictors, ds.PredictorNames)
	}

	folds := bundle.Folds
	if iteration != 0 {
		fm, ok := bundle.Fold(iteration)
		if !ok {
			return nil, fmt.Errorf("classifier has no outer fold %d", iteration)
		}
		folds = []persistence.FoldModel{fm}
	}
	if len(folds) == 0 {
		return nil, fmt.Errorf("classifier holds no fold models")
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no observations to score", data.ErrSchemaMismatch)
	}
	X := ds.Matrix(nil)

	app := &Application{Dataset: ds}
	for _, fm := range folds {
		presence, predictions, err := fm.Classify(X)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", fm.Iteration, err)
		}
		app.Iterations = append(app.Iterations, fm.Iteration)
		app.Thresholds = append(app.Thresholds, fm.Threshold)
		app.Presence = append(app.Presence, presence)
		app.Prediction = append(app.Prediction, predictions)
	}

	log.Info().
		Str("run_id", bundle.Metadata.RunID).
		Int("observations", ds.Len()).
		Ints("folds", app.Iterations).
		Msg("applied classifier")
	return app, nil
}

// WriteApplication writes one row per observation with a presence and
// prediction column pair for each applied fold.
func (e *Exporter) WriteApplication(app *Application) error {
	file, err := os.Create(e.path(ApplicationFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{data.MooseYearColumn, data.FullPathColumn, data.CalfStatusColumn}
	for _, it := range app.Iterations {
		header = append(header, fmt.Sprintf("presence_%d", it), fmt.Sprintf("prediction_%d", it))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, obs := range app.Dataset.Observations {
		row := make([]string, 0, len(header))
		row = append(row, obs.MooseYearID, obs.FullPathID, strconv.Itoa(obs.CalfStatus))
		for k := range app.Iterations {
			row = append(row, formatFloat(app.Presence[k][i]), strconv.Itoa(app.Prediction[k][i]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
