package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDataset(n int) *Dataset {
	ds := &Dataset{PredictorNames: []string{"a", "b"}}
	for i := 0; i < n; i++ {
		ds.Observations = append(ds.Observations, Observation{
			Index:       i,
			MooseYearID: fmt.Sprintf("M%d", i),
			FullPathID:  "p",
			CalfStatus:  i % 3,
			Predictors:  []float64{float64(i), float64(10 * i)},
			Response:    i % 2,
		})
	}
	return ds
}

func TestDatasetMatrix(t *testing.T) {
	ds := makeDataset(4)

	m := ds.Matrix([]int{3, 1})
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3.0, m.At(0, 0))
	assert.Equal(t, 10.0, m.At(1, 1))

	all := ds.Matrix(nil)
	r, _ = all.Dims()
	assert.Equal(t, 4, r)
}

func TestDatasetLabelsAndCounts(t *testing.T) {
	ds := makeDataset(5)
	assert.Equal(t, []int{0, 1, 0, 1, 0}, ds.Labels())
	assert.Equal(t, []int{1, 0}, ds.LabelsAt([]int{3, 4}))
	assert.Equal(t, map[int]int{0: 3, 1: 2}, ds.ClassCounts())
	assert.Equal(t, []int{0, 1}, SortedClasses(ds.Labels()))
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, ds.Column(1))
}

func TestFilterCalfStatus(t *testing.T) {
	ds := makeDataset(9)
	kept := ds.FilterCalfStatus(1)

	require.Equal(t, 3, kept.Len())
	for i, obs := range kept.Observations {
		assert.Equal(t, 1, obs.CalfStatus)
		assert.Equal(t, i, obs.Index)
	}
	assert.Equal(t, "M4", kept.Observations[1].MooseYearID)
	// the source is untouched
	assert.Equal(t, 4, ds.Observations[4].Index)
}

func TestShuffleIsSeeded(t *testing.T) {
	ds := makeDataset(20)

	a := ds.Shuffle(21)
	b := ds.Shuffle(21)
	assert.Equal(t, a.Observations, b.Observations)
	assert.NotEqual(t, ds.Observations, a.Observations)
	assert.ElementsMatch(t, ds.Labels(), a.Labels())

	for i, obs := range a.Observations {
		assert.Equal(t, i, obs.Index)
	}
	for i, obs := range ds.Observations {
		assert.Equal(t, i, obs.Index)
	}
}
