package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted      = errors.New("model is not fitted")
	ErrSingleClass    = errors.New("training labels contain a single class")
	ErrUnknownPenalty = errors.New("unknown penalty")
	ErrUnknownSolver  = errors.New("unknown solver")
)

// Params is one point of a hyperparameter grid.
type Params struct {
	Penalty string  `yaml:"penalty"`
	C       float64 `yaml:"c"`
	Solver  string  `yaml:"solver"`
}

func (p Params) String() string {
	return fmt.Sprintf("penalty=%s C=%g solver=%s", p.Penalty, p.C, p.Solver)
}

func (p Params) Validate() error {
	switch p.Penalty {
	case PenaltyL1, PenaltyL2:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPenalty, p.Penalty)
	}
	switch p.Solver {
	case SolverFISTA, SolverISTA:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSolver, p.Solver)
	}
	if p.C <= 0 {
		return fmt.Errorf("inverse regularisation strength must be positive, got %g", p.C)
	}
	return nil
}

// PresenceColumn extracts the class-1 probabilities from a PredictProba result.
func PresenceColumn(proba *mat.Dense) []float64 {
	r, _ := proba.Dims()
	out := make([]float64, r)
	mat.Col(out, 1, proba)
	return out
}
