package experiment

import (
	"context"
	"fmt"
	"time"

	"habitatcv/internal/config"
	"habitatcv/internal/data"
	"habitatcv/internal/evaluation"
	"habitatcv/internal/persistence"
	"habitatcv/internal/runs"

	"github.com/rs/zerolog/log"
)

// Runner loads the path table, evaluates it with nested cross-validation
// and writes the artefacts.
type Runner struct {
	Config  config.Config
	tracker *runs.Tracker
}

// Report is what a finished run produced.
type Report struct {
	RunID     string
	Dataset   *data.Dataset
	Results   *evaluation.Results
	OutputDir string
	Elapsed   time.Duration
}

func NewRunner(cfg config.Config, tracker *runs.Tracker) *Runner {
	if tracker == nil {
		tracker = runs.NewTracker(nil)
	}
	return &Runner{Config: cfg, tracker: tracker}
}

// LoadDataset reads the input table, validates it, keeps the configured
// calf status and shuffles with the configured seed.
func (r *Runner) LoadDataset() (*data.Dataset, error) {
	ds, err := data.NewCSVReader(r.Config.Data.Input, r.Config.Schema()).LoadData()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(ds); err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}

	loaded := ds.Len()
	ds = ds.FilterCalfStatus(r.Config.Data.CalfStatus).Shuffle(r.Config.Data.ShuffleSeed)

	counts := ds.ClassCounts()
	log.Info().
		Str("input", r.Config.Data.Input).
		Int("loaded", loaded).
		Int("kept", ds.Len()).
		Int("calf_status", r.Config.Data.CalfStatus).
		Int("presences", counts[1]).
		Int("absences", counts[0]).
		Msg("loaded observations")

	if err := validator.ValidateLabels(ds.Labels()); err != nil {
		return nil, fmt.Errorf("%w: %v", evaluation.ErrDegenerateFold, err)
	}

	st, err := validator.GetDatasetStats(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise predictors: %w", err)
	}
	for _, fs := range st.FeatureStats {
		log.Debug().
			Str("predictor", fs.Name).
			Float64("min", fs.Min).
			Float64("max", fs.Max).
			Float64("mean", fs.Mean).
			Float64("std", fs.StdDev).
			Msg("predictor summary")
	}
	return ds, nil
}

// Run performs one tracked evaluation. The run is recorded as failed or
// cancelled when any step errors.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	run := r.tracker.Create(r.Config.Data.Input, r.Config.Output.Dir)
	ctx = r.tracker.Start(ctx, run)
	log.Info().Str("run_id", run.ID).Msg("starting evaluation")

	report, err := r.execute(ctx, run)
	if err != nil {
		if terr := r.tracker.Fail(run, err); terr != nil {
			log.Error().Err(terr).Str("run_id", run.ID).Msg("failed to record run")
		}
		return nil, err
	}

	if err := r.tracker.Complete(run, report.Results); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) execute(ctx context.Context, run *runs.Run) (*Report, error) {
	start := time.Now()

	ds, err := r.LoadDataset()
	if err != nil {
		return nil, err
	}
	run.AddLog(fmt.Sprintf("loaded %d observations", ds.Len()))

	exporter, err := NewExporter(r.Config.Output.Dir)
	if err != nil {
		return nil, err
	}

	corr, err := Correlate(ds)
	if err != nil {
		return nil, err
	}

	cv := evaluation.NewNestedCrossValidator(r.Config.Nested())
	cv.OnProgress(run.ProgressFunc())
	res, err := cv.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	if err := exporter.WriteCorrelation(corr); err != nil {
		return nil, fmt.Errorf("failed to write correlation: %w", err)
	}
	if err := exporter.WritePredictions(ds.PredictorNames, res.Records); err != nil {
		return nil, fmt.Errorf("failed to write predictions: %w", err)
	}
	if err := exporter.WriteThresholds(res.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to write thresholds: %w", err)
	}

	report := NewMetricsReport(res)
	report.RunID = run.ID
	if err := exporter.WriteMetrics(report); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	bundle := persistence.NewModelBundle(res, ds.PredictorNames)
	bundle.Metadata.RunID = run.ID
	bundle.Metadata.Dataset = r.Config.Data.Input
	bundle.Metadata.TrainingTime = elapsed
	if err := exporter.WriteBundle(bundle); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", run.ID).
		Float64("auc", res.Summary.AUC).
		Float64("accuracy", res.Summary.Accuracy).
		Float64("sensitivity", res.Summary.Sensitivity).
		Float64("specificity", res.Summary.Specificity).
		Dur("elapsed", elapsed).
		Msg("evaluation finished")

	return &Report{
		RunID:     run.ID,
		Dataset:   ds,
		Results:   res,
		OutputDir: exporter.Dir,
		Elapsed:   elapsed,
	}, nil
}
