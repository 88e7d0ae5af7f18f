package evaluation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdGrid(t *testing.T) {
	grid := ThresholdGrid()
	require.Len(t, grid, ThresholdSteps)
	assert.Equal(t, 0.001, grid[0])
	assert.Equal(t, 0.5, grid[499])
	assert.Equal(t, 1.0, grid[len(grid)-1])
}

func TestOptimizeThresholdSeparable(t *testing.T) {
	probs := []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}
	y := []int{0, 0, 0, 1, 1, 1}

	res, err := OptimizeThreshold(probs, y)
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Sensitivity)
	assert.Equal(t, 1.0, res.Specificity)
	assert.InDelta(t, 1.0, res.AUC, 1e-12)
	assert.Equal(t, 1.0, res.Accuracy)
	// 0.3 itself still marks the 0.3 absence as presence.
	assert.InDelta(t, 0.301, res.Threshold, 1e-12)
}

func TestOptimizeThresholdPicksLowestTie(t *testing.T) {
	res, err := OptimizeThreshold([]float64{0.2, 0.8}, []int{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.201, res.Threshold, 1e-12)
}

func TestOptimizeThresholdIsFirstArgmin(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	probs := make([]float64, 80)
	y := make([]int, 80)
	for i := range probs {
		y[i] = i % 2
		probs[i] = math.Min(1, math.Max(0, 0.4+0.2*float64(y[i])+0.2*rng.NormFloat64()))
	}

	curve, err := ThresholdCurve(probs, y)
	require.NoError(t, err)

	want := 0
	for i, p := range curve {
		if math.Abs(p.Sensitivity-p.Specificity) < math.Abs(curve[want].Sensitivity-curve[want].Specificity) {
			want = i
		}
	}

	res, err := OptimizeThreshold(probs, y)
	require.NoError(t, err)
	assert.Equal(t, curve[want].Threshold, res.Threshold)
	assert.Equal(t, curve[want].Sensitivity, res.Sensitivity)
	assert.Equal(t, curve[want].Specificity, res.Specificity)
}

func TestThresholdCurveMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	probs := make([]float64, 200)
	y := make([]int, 200)
	for i := range probs {
		probs[i] = rng.Float64()
		if rng.Float64() < probs[i] {
			y[i] = 1
		}
	}

	curve, err := ThresholdCurve(probs, y)
	require.NoError(t, err)
	require.Len(t, curve, ThresholdSteps)

	for i := 1; i < len(curve); i++ {
		assert.GreaterOrEqual(t, curve[i].Threshold, curve[i-1].Threshold)
		assert.LessOrEqual(t, curve[i].Sensitivity, curve[i-1].Sensitivity, "sensitivity rose at %v", curve[i].Threshold)
		assert.GreaterOrEqual(t, curve[i].Specificity, curve[i-1].Specificity, "specificity fell at %v", curve[i].Threshold)
	}
}

func TestOptimizeThresholdErrors(t *testing.T) {
	_, err := OptimizeThreshold([]float64{0.1, 0.9, 0.5}, []int{1, 1, 1})
	assert.True(t, errors.Is(err, ErrDegenerateFold), "got %v", err)

	_, err = OptimizeThreshold([]float64{0.1, 0.9}, []int{0, 0})
	assert.True(t, errors.Is(err, ErrDegenerateFold), "got %v", err)

	_, err = OptimizeThreshold([]float64{0.1}, []int{0, 1})
	assert.True(t, errors.Is(err, ErrSchemaMismatch), "got %v", err)

	_, err = OptimizeThreshold(nil, nil)
	assert.True(t, errors.Is(err, ErrSchemaMismatch), "got %v", err)
}

func TestEvaluateThreshold(t *testing.T) {
	probs := []float64{0.1, 0.4, 0.35, 0.8}
	y := []int{0, 0, 1, 1}

	res, err := EvaluateThreshold(probs, y, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Sensitivity)
	assert.Equal(t, 1.0, res.Specificity)
	assert.Equal(t, 0.75, res.Accuracy)
	assert.InDelta(t, 0.75, res.AUC, 1e-12)
}
