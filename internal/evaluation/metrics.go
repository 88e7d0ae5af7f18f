package evaluation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ConfusionMatrix counts binary outcomes with class 1 as the positive
// (presence) class.
type ConfusionMatrix struct {
	TrueNegative  int `json:"true_negative" yaml:"true_negative"`
	FalsePositive int `json:"false_positive" yaml:"false_positive"`
	FalseNegative int `json:"false_negative" yaml:"false_negative"`
	TruePositive  int `json:"true_positive" yaml:"true_positive"`
}

func NewConfusionMatrix(yTrue, yPred []int) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(yTrue) != len(yPred) {
		return cm, fmt.Errorf("%w: %d labels vs %d predictions", ErrSchemaMismatch, len(yTrue), len(yPred))
	}

	for i := range yTrue {
		switch {
		case yTrue[i] == 0 && yPred[i] == 0:
			cm.TrueNegative++
		case yTrue[i] == 0 && yPred[i] == 1:
			cm.FalsePositive++
		case yTrue[i] == 1 && yPred[i] == 0:
			cm.FalseNegative++
		case yTrue[i] == 1 && yPred[i] == 1:
			cm.TruePositive++
		default:
			return cm, fmt.Errorf("%w: non-binary pair (%d, %d) at %d", ErrSchemaMismatch, yTrue[i], yPred[i], i)
		}
	}
	return cm, nil
}

func (cm ConfusionMatrix) Total() int {
	return cm.TrueNegative + cm.FalsePositive + cm.FalseNegative + cm.TruePositive
}

// Sensitivity is the true-positive rate.
func (cm ConfusionMatrix) Sensitivity() (float64, error) {
	positives := cm.TruePositive + cm.FalseNegative
	if positives == 0 {
		return 0, fmt.Errorf("%w: no presence observations, sensitivity undefined", ErrDegenerateFold)
	}
	return float64(cm.TruePositive) / float64(positives), nil
}

// Specificity is the true-negative rate.
func (cm ConfusionMatrix) Specificity() (float64, error) {
	negatives := cm.TrueNegative + cm.FalsePositive
	if negatives == 0 {
		return 0, fmt.Errorf("%w: no absence observations, specificity undefined", ErrDegenerateFold)
	}
	return float64(cm.TrueNegative) / float64(negatives), nil
}

func (cm ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	return float64(cm.TrueNegative+cm.TruePositive) / float64(total)
}

// Binarize marks probabilities at or above threshold as presence.
func Binarize(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

// AUC is the area under the ROC curve of presence probabilities against
// binary labels. Tied scores are handled as a single cutoff.
func AUC(probs []float64, labels []int) (float64, error) {
	if len(probs) != len(labels) || len(probs) == 0 {
		return 0, fmt.Errorf("%w: %d probabilities vs %d labels", ErrSchemaMismatch, len(probs), len(labels))
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] < probs[order[b]] })

	scores := make([]float64, len(probs))
	classes := make([]bool, len(probs))
	positives := 0
	for i, idx := range order {
		scores[i] = probs[idx]
		switch labels[idx] {
		case 0:
		case 1:
			classes[i] = true
			positives++
		default:
			return 0, fmt.Errorf("%w: label %d at %d is not binary", ErrSchemaMismatch, labels[idx], idx)
		}
	}
	if positives == 0 || positives == len(labels) {
		return 0, fmt.Errorf("%w: AUC needs both classes, got %d presence of %d", ErrDegenerateFold, positives, len(labels))
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Summary is the pooled performance of a set of binarised predictions.
type Summary struct {
	N           int             `json:"n" yaml:"n"`
	Sensitivity float64         `json:"sensitivity" yaml:"sensitivity"`
	Specificity float64         `json:"specificity" yaml:"specificity"`
	AUC         float64         `json:"auc" yaml:"auc"`
	Accuracy    float64         `json:"accuracy" yaml:"accuracy"`
	Confusion   ConfusionMatrix `json:"confusion" yaml:"confusion"`
}

// Summarize computes the confusion matrix on predictions and AUC on the
// probabilities of the same rows.
func Summarize(labels, predictions []int, probs []float64) (Summary, error) {
	cm, err := NewConfusionMatrix(labels, predictions)
	if err != nil {
		return Summary{}, err
	}
	sensitivity, err := cm.Sensitivity()
	if err != nil {
		return Summary{}, err
	}
	specificity, err := cm.Specificity()
	if err != nil {
		return Summary{}, err
	}
	auc, err := AUC(probs, labels)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		N:           cm.Total(),
		Sensitivity: sensitivity,
		Specificity: specificity,
		AUC:         auc,
		Accuracy:    cm.Accuracy(),
		Confusion:   cm,
	}, nil
}

func (s Summary) FormatMetrics() string {
	result := fmt.Sprintf("Sensitivity: %.4f\n", s.Sensitivity)
	result += fmt.Sprintf("Specificity: %.4f\n", s.Specificity)
	result += fmt.Sprintf("AUC: %.4f\n", s.AUC)
	result += fmt.Sprintf("Accuracy: %.4f\n", s.Accuracy)
	result += fmt.Sprintf("Confusion - TN: %d, FP: %d, FN: %d, TP: %d\n",
		s.Confusion.TrueNegative, s.Confusion.FalsePositive,
		s.Confusion.FalseNegative, s.Confusion.TruePositive)
	return result
}
