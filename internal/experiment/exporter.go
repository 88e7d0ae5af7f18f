package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"habitatcv/internal/data"
	"habitatcv/internal/evaluation"
	"habitatcv/internal/models"
	"habitatcv/internal/persistence"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	PredictionFile  = "prediction.csv"
	ThresholdFile   = "threshold.txt"
	ClassifierFile  = "classifier.gob"
	CorrelationFile = "variable_correlation.csv"
	MetricsFile     = "metrics.yaml"
)

// Exporter writes the artefacts of a run into Dir.
type Exporter struct {
	Dir string
}

func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Exporter{Dir: dir}, nil
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.Dir, name)
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// WritePredictions writes one row per result record, in fold order.
func (e *Exporter) WritePredictions(predictors []string, records []evaluation.ResultRecord) error {
	file, err := os.Create(e.path(PredictionFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{data.MooseYearColumn, data.FullPathColumn, data.CalfStatusColumn}
	header = append(header, predictors...)
	header = append(header, data.ResponseColumn, "absence", "presence", "prediction", "iteration")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		obs := rec.Observation
		row := make([]string, 0, len(header))
		row = append(row, obs.MooseYearID, obs.FullPathID, strconv.Itoa(obs.CalfStatus))
		for _, v := range obs.Predictors {
			row = append(row, formatFloat(v))
		}
		row = append(row,
			strconv.Itoa(obs.Response),
			formatFloat(rec.Absence),
			formatFloat(rec.Presence),
			strconv.Itoa(rec.Prediction),
			strconv.Itoa(rec.Iteration),
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteThresholds writes one threshold per line in outer fold order.
func (e *Exporter) WriteThresholds(thresholds []float64) error {
	file, err := os.Create(e.path(ThresholdFile))
	if err != nil {
		return err
	}
	defer file.Close()

	for _, t := range thresholds {
		if _, err := fmt.Fprintln(file, decimal.NewFromFloat(t).StringFixed(3)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) WriteCorrelation(cm CorrelationMatrix) error {
	file, err := os.Create(e.path(CorrelationFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(append([]string{"variable"}, cm.Names...)); err != nil {
		return err
	}
	for i, name := range cm.Names {
		row := make([]string, 0, len(cm.Names)+1)
		row = append(row, name)
		for _, v := range cm.Values[i] {
			row = append(row, decimal.NewFromFloat(v).StringFixed(4))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *Exporter) WriteBundle(bundle *persistence.ModelBundle) error {
	return bundle.Save(e.path(ClassifierFile))
}

// FoldMetrics describes one outer iteration.
type FoldMetrics struct {
	Iteration        int           `yaml:"iteration"`
	Params           models.Params `yaml:"params"`
	SearchAUC        float64       `yaml:"search_auc"`
	Threshold        float64       `yaml:"threshold"`
	InnerSensitivity float64       `yaml:"inner_sensitivity"`
	InnerSpecificity float64       `yaml:"inner_specificity"`
	InnerAUC         float64       `yaml:"inner_auc"`
	InnerAccuracy    float64       `yaml:"inner_accuracy"`
	TestRows         int           `yaml:"test_rows"`
	NonZero          int           `yaml:"nonzero_weights"`
}

type MetricsReport struct {
	RunID        string                     `yaml:"run_id,omitempty"`
	Observations int                        `yaml:"observations"`
	Sensitivity  float64                    `yaml:"sensitivity"`
	Specificity  float64                    `yaml:"specificity"`
	AUC          float64                    `yaml:"auc"`
	Accuracy     float64                    `yaml:"accuracy"`
	Confusion    evaluation.ConfusionMatrix `yaml:"confusion"`
	Folds        []FoldMetrics              `yaml:"folds"`
}

func NewMetricsReport(res *evaluation.Results) MetricsReport {
	report := MetricsReport{
		Observations: res.Summary.N,
		Sensitivity:  res.Summary.Sensitivity,
		Specificity:  res.Summary.Specificity,
		AUC:          res.Summary.AUC,
		Accuracy:     res.Summary.Accuracy,
		Confusion:    res.Summary.Confusion,
		Folds:        make([]FoldMetrics, len(res.Folds)),
	}
	for k, fold := range res.Folds {
		fm := FoldMetrics{
			Iteration:        fold.Iteration,
			Params:           fold.Search.Best,
			SearchAUC:        fold.Search.BestScore,
			Threshold:        fold.Threshold,
			InnerSensitivity: fold.Inner.Sensitivity,
			InnerSpecificity: fold.Inner.Specificity,
			InnerAUC:         fold.Inner.AUC,
			InnerAccuracy:    fold.Inner.Accuracy,
			TestRows:         len(fold.Records),
		}
		if fold.Model != nil {
			fm.NonZero = fold.Model.NonZero()
		}
		report.Folds[k] = fm
	}
	return report
}

func (e *Exporter) WriteMetrics(report MetricsReport) error {
	raw, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return os.WriteFile(e.path(MetricsFile), raw, 0o644)
}

// ReadMetrics loads a metrics.yaml written by WriteMetrics.
func ReadMetrics(path string) (MetricsReport, error) {
	var report MetricsReport
	raw, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := yaml.Unmarshal(raw, &report); err != nil {
		return report, fmt.Errorf("failed to parse metrics: %w", err)
	}
	return report, nil
}
