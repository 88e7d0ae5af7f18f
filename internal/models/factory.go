package models

type ModelConfig struct {
	Params  Params
	MaxIter int
	Tol     float64
	Scale   string
}

func CreateModel(config ModelConfig) (*LogisticRegression, error) {
	if config.Params.Penalty == "" {
		config.Params.Penalty = PenaltyL1
	}
	if config.Params.Solver == "" {
		config.Params.Solver = SolverFISTA
	}
	if err := config.Params.Validate(); err != nil {
		return nil, err
	}
	return NewLogisticRegression(config.Params, config.MaxIter, config.Tol, config.Scale), nil
}

// WithParams returns a copy of the config carrying different grid params.
func (c ModelConfig) WithParams(p Params) ModelConfig {
	c.Params = p
	return c
}

func DefaultConfig() ModelConfig {
	return ModelConfig{
		Params: Params{
			Penalty: PenaltyL1,
			C:       1,
			Solver:  SolverFISTA,
		},
		MaxIter: 1000,
		Tol:     1e-6,
		Scale:   "standard",
	}
}
