package evaluation

import (
	"fmt"
	"math"
)

// ThresholdSteps is the number of candidate thresholds, 0.001 through 1.000.
const ThresholdSteps = 1000

var thresholdGrid = buildThresholdGrid()

func buildThresholdGrid() []float64 {
	grid := make([]float64, ThresholdSteps)
	for i := range grid {
		grid[i] = float64(i+1) / ThresholdSteps
	}
	return grid
}

// ThresholdGrid returns a copy of the candidate thresholds in ascending order.
func ThresholdGrid() []float64 {
	out := make([]float64, len(thresholdGrid))
	copy(out, thresholdGrid)
	return out
}

// ThresholdResult is the performance of one decision threshold.
type ThresholdResult struct {
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	Sensitivity float64 `json:"sensitivity" yaml:"sensitivity"`
	Specificity float64 `json:"specificity" yaml:"specificity"`
	AUC         float64 `json:"auc" yaml:"auc"`
	Accuracy    float64 `json:"accuracy" yaml:"accuracy"`
}

// CurvePoint is one step of the threshold sweep.
type CurvePoint struct {
	Threshold   float64
	Sensitivity float64
	Specificity float64
}

func checkBinaryInputs(probs []float64, labels []int) error {
	if len(probs) == 0 || len(probs) != len(labels) {
		return fmt.Errorf("%w: %d probabilities vs %d labels", ErrSchemaMismatch, len(probs), len(labels))
	}
	positives := 0
	for i, label := range labels {
		switch label {
		case 0:
		case 1:
			positives++
		default:
			return fmt.Errorf("%w: label %d at %d is not binary", ErrSchemaMismatch, label, i)
		}
	}
	if positives == 0 || positives == len(labels) {
		return fmt.Errorf("%w: held-out labels contain a single class (%d presence of %d)",
			ErrDegenerateFold, positives, len(labels))
	}
	return nil
}

// EvaluateThreshold scores the predictions obtained by binarising probs at
// threshold.
func EvaluateThreshold(probs []float64, labels []int, threshold float64) (ThresholdResult, error) {
	if err := checkBinaryInputs(probs, labels); err != nil {
		return ThresholdResult{}, err
	}

	summary, err := Summarize(labels, Binarize(probs, threshold), probs)
	if err != nil {
		return ThresholdResult{}, err
	}

	return ThresholdResult{
		Threshold:   threshold,
		Sensitivity: summary.Sensitivity,
		Specificity: summary.Specificity,
		AUC:         summary.AUC,
		Accuracy:    summary.Accuracy,
	}, nil
}

// ThresholdCurve sweeps every candidate threshold in ascending order.
func ThresholdCurve(probs []float64, labels []int) ([]CurvePoint, error) {
	if err := checkBinaryInputs(probs, labels); err != nil {
		return nil, err
	}

	curve := make([]CurvePoint, len(thresholdGrid))
	for i, t := range thresholdGrid {
		cm, err := NewConfusionMatrix(labels, Binarize(probs, t))
		if err != nil {
			return nil, err
		}
		sensitivity, err := cm.Sensitivity()
		if err != nil {
			return nil, err
		}
		specificity, err := cm.Specificity()
		if err != nil {
			return nil, err
		}
		curve[i] = CurvePoint{Threshold: t, Sensitivity: sensitivity, Specificity: specificity}
	}
	return curve, nil
}

// OptimizeThreshold picks the candidate threshold that minimises
// |sensitivity - specificity|. On ties the lowest threshold wins.
func OptimizeThreshold(probs []float64, labels []int) (ThresholdResult, error) {
	curve, err := ThresholdCurve(probs, labels)
	if err != nil {
		return ThresholdResult{}, err
	}

	best := 0
	bestDiff := math.Inf(1)
	for i, point := range curve {
		diff := math.Abs(point.Sensitivity - point.Specificity)
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}

	return EvaluateThreshold(probs, labels, curve[best].Threshold)
}
