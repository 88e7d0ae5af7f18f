package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	ScaleNone     = "none"
	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
)

// Scaler rescales predictor columns using statistics from the rows it was
// fitted on. Fitting on training rows only keeps test rows out of the
// estimates.
type Scaler struct {
	ScaleType string
	IsFitted  bool
	Offset    []float64
	Scale     []float64
}

func NewScaler(scaleType string) *Scaler {
	if scaleType == "" || scaleType == "raw" {
		scaleType = ScaleNone
	}
	return &Scaler{ScaleType: scaleType}
}

func (s *Scaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("empty dataset")
	}

	s.Offset = make([]float64, cols)
	s.Scale = make([]float64, cols)
	col := make([]float64, rows)

	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		switch s.ScaleType {
		case ScaleStandard, "standardized":
			mean, std := stat.PopMeanStdDev(col, nil)
			s.Offset[j] = mean
			s.Scale[j] = std
		case ScaleMinMax, "normalized":
			lo, hi := col[0], col[0]
			for _, v := range col[1:] {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			s.Offset[j] = lo
			s.Scale[j] = hi - lo
		case ScaleNone:
			s.Offset[j] = 0
			s.Scale[j] = 1
		default:
			return fmt.Errorf("unknown scale type: %s", s.ScaleType)
		}
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}

	rows, cols := X.Dims()
	if cols != len(s.Scale) {
		return nil, fmt.Errorf("scaler fitted on %d columns, got %d", len(s.Scale), cols)
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	result := mat.NewDense(rows, cols, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Offset[j]) / s.Scale[j]
	}, X)
	return result, nil
}

func (s *Scaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
