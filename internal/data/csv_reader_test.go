package data

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSchema() Schema {
	return Schema{
		MooseYear:  MooseYearColumn,
		FullPath:   FullPathColumn,
		CalfStatus: CalfStatusColumn,
		Response:   ResponseColumn,
		Predictors: []string{"elevation_mean", "roughness_mean"},
	}
}

const validTable = `mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response,notes
M30_2019,p1,1,312.5,0.12,1,x
M30_2019,p2,1,298.0,0.40,0,y
M31_2020,p1,0,401.25,-0.05,1,z
`

func TestReadObservations(t *testing.T) {
	ds, err := ReadObservations(strings.NewReader(validTable), smallSchema())
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"elevation_mean", "roughness_mean"}, ds.PredictorNames)

	first := ds.Observations[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "M30_2019/p1", first.ID())
	assert.Equal(t, 1, first.CalfStatus)
	assert.Equal(t, []float64{312.5, 0.12}, first.Predictors)
	assert.Equal(t, 1, first.Response)

	assert.Equal(t, 0, ds.Observations[2].CalfStatus)
	assert.Equal(t, -0.05, ds.Observations[2].Predictors[1])
	assert.Equal(t, []int{1, 0, 1}, ds.Labels())
}

func TestReadObservationsSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		table string
	}{
		{"missing predictor", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,response\nM1,p1,1,3,1\n"},
		{"missing response", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean\nM1,p1,1,3,4\n"},
		{"non-numeric predictor", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,1,high,4,1\n"},
		{"empty predictor", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,1,,4,1\n"},
		{"fractional response", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,1,3,4,0.5\n"},
		{"response out of range", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,1,3,4,2\n"},
		{"non-integer calf status", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,yes,3,4,1\n"},
		{"ragged row", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,p1,1,3,4,1\nM2,p2,1,0.7\n"},
		{"broken quote", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\nM1,\"p1,1,3,4,1\n"},
		{"header only", "mooseYear_id,fullPath_id,calfStatus,elevation_mean,roughness_mean,response\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObservations(strings.NewReader(tt.table), smallSchema())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch), "got %v", err)
		})
	}
}

func TestCSVReaderLoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.csv")
	require.NoError(t, os.WriteFile(path, []byte(validTable), 0o644))

	ds, err := NewCSVReader(path, smallSchema()).LoadData()
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	_, err = NewCSVReader(filepath.Join(t.TempDir(), "missing.csv"), smallSchema()).LoadData()
	assert.Error(t, err)
}

func TestDefaultSchemaIsACopy(t *testing.T) {
	schema := DefaultSchema()
	require.Len(t, schema.Predictors, 12)
	schema.Predictors[0] = "changed"
	assert.Equal(t, "elevation_mean", DefaultPredictors[0])
}
