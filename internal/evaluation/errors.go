package evaluation

import (
	"errors"

	"habitatcv/internal/data"
)

var (
	// ErrInsufficientSamples means the fold count exceeds the size of the
	// smallest class.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrDegenerateFold means a partition is missing a class, so AUC,
	// sensitivity or specificity is undefined.
	ErrDegenerateFold = errors.New("degenerate fold")
	// ErrSchemaMismatch is shared with the data package.
	ErrSchemaMismatch = data.ErrSchemaMismatch
	ErrInvalidFolds   = errors.New("invalid number of folds")
)
