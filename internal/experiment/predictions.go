package experiment

import (
	"encoding/csv"
	"fmt"
	"os"

	"habitatcv/internal/data"

	"github.com/shopspring/decimal"
)

// ReadPredictions loads the response and presence columns of a
// prediction.csv so the threshold sweep can be rerun on it.
func ReadPredictions(path string) ([]float64, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%w: no prediction rows", data.ErrSchemaMismatch)
	}

	responseIdx, presenceIdx := -1, -1
	for i, name := range records[0] {
		switch name {
		case data.ResponseColumn:
			responseIdx = i
		case "presence":
			presenceIdx = i
		}
	}
	if responseIdx < 0 || presenceIdx < 0 {
		return nil, nil, fmt.Errorf("%w: prediction table needs %q and %q columns",
			data.ErrSchemaMismatch, data.ResponseColumn, "presence")
	}

	probs := make([]float64, 0, len(records)-1)
	labels := make([]int, 0, len(records)-1)
	for i, record := range records[1:] {
		p, err := decimal.NewFromString(record[presenceIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: row %d presence: %v", data.ErrSchemaMismatch, i+2, err)
		}
		y, err := decimal.NewFromString(record[responseIdx])
		if err != nil || !y.IsInteger() {
			return nil, nil, fmt.Errorf("%w: row %d response %q", data.ErrSchemaMismatch, i+2, record[responseIdx])
		}
		probs = append(probs, p.InexactFloat64())
		labels = append(labels, int(y.IntPart()))
	}
	return probs, labels, nil
}
