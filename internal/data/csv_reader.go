package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Schema names the columns read from the input table.
type Schema struct {
	MooseYear  string
	FullPath   string
	CalfStatus string
	Response   string
	Predictors []string
}

func DefaultSchema() Schema {
	predictors := make([]string, len(DefaultPredictors))
	copy(predictors, DefaultPredictors)
	return Schema{
		MooseYear:  MooseYearColumn,
		FullPath:   FullPathColumn,
		CalfStatus: CalfStatusColumn,
		Response:   ResponseColumn,
		Predictors: predictors,
	}
}

type CSVReader struct {
	filename string
	schema   Schema
}

func NewCSVReader(filename string, schema Schema) *CSVReader {
	return &CSVReader{filename: filename, schema: schema}
}

func (cr *CSVReader) LoadData() (*Dataset, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cr.filename, err)
	}
	defer file.Close()

	return ReadObservations(file, cr.schema)
}

// ReadObservations parses a CSV stream with a header row. Columns not named
// by the schema are ignored.
func ReadObservations(r io.Reader, schema Schema) (*Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		// ragged rows and broken quoting are malformed tables
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: insufficient data in file", ErrSchemaMismatch)
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}

	lookup := func(name string) (int, error) {
		idx, ok := columns[name]
		if !ok {
			return 0, fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, name)
		}
		return idx, nil
	}

	mooseIdx, err := lookup(schema.MooseYear)
	if err != nil {
		return nil, err
	}
	pathIdx, err := lookup(schema.FullPath)
	if err != nil {
		return nil, err
	}
	calfIdx, err := lookup(schema.CalfStatus)
	if err != nil {
		return nil, err
	}
	responseIdx, err := lookup(schema.Response)
	if err != nil {
		return nil, err
	}
	predictorIdx := make([]int, len(schema.Predictors))
	for j, name := range schema.Predictors {
		if predictorIdx[j], err = lookup(name); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		PredictorNames: schema.Predictors,
		Observations:   make([]Observation, 0, len(records)-1),
	}

	for i, record := range records[1:] {
		row := i + 2
		obs := Observation{
			Index:       len(ds.Observations),
			MooseYearID: record[mooseIdx],
			FullPathID:  record[pathIdx],
			Predictors:  make([]float64, len(predictorIdx)),
		}

		for j, col := range predictorIdx {
			val, err := parseNumber(record[col])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrSchemaMismatch, row, schema.Predictors[j], err)
			}
			obs.Predictors[j] = val.InexactFloat64()
		}

		calf, err := parseNumber(record[calfIdx])
		if err != nil || !calf.IsInteger() {
			return nil, fmt.Errorf("%w: row %d column %q: not an integer: %q", ErrSchemaMismatch, row, schema.CalfStatus, record[calfIdx])
		}
		obs.CalfStatus = int(calf.IntPart())

		response, err := parseNumber(record[responseIdx])
		if err != nil || !response.IsInteger() {
			return nil, fmt.Errorf("%w: row %d column %q: not an integer: %q", ErrSchemaMismatch, row, schema.Response, record[responseIdx])
		}
		obs.Response = int(response.IntPart())
		if obs.Response != 0 && obs.Response != 1 {
			return nil, fmt.Errorf("%w: row %d column %q: response must be 0 or 1, got %d", ErrSchemaMismatch, row, schema.Response, obs.Response)
		}

		ds.Observations = append(ds.Observations, obs)
	}

	return ds, nil
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	return decimal.NewFromString(s)
}
