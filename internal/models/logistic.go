package models

import (
	"fmt"
	"math"

	"habitatcv/internal/preprocessing"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	PenaltyL1 = "l1"
	PenaltyL2 = "l2"

	// SolverFISTA is accelerated proximal gradient descent; SolverISTA is the
	// plain proximal gradient iteration.
	SolverFISTA = "fista"
	SolverISTA  = "ista"
)

// LogisticRegression minimises
//
//	sum_i logloss(y_i, w·x_i + b) + (1/C)·penalty(w)
//
// with an unpenalised intercept. Predictors are rescaled by an internal
// Scaler fitted on the training rows.
type LogisticRegression struct {
	Params    Params
	Weights   []float64
	Intercept float64
	Scaler    *preprocessing.Scaler
	ScaleType string
	MaxIter   int
	Tol       float64
	NIter     int
	Converged bool
	Fitted    bool
}

func NewLogisticRegression(params Params, maxIter int, tol float64, scaleType string) *LogisticRegression {
	if maxIter <= 0 {
		maxIter = 1000
	}
	if tol <= 0 {
		tol = 1e-6
	}
	return &LogisticRegression{
		Params:    params,
		ScaleType: scaleType,
		MaxIter:   maxIter,
		Tol:       tol,
	}
}

func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) error {
	if err := lr.Params.Validate(); err != nil {
		return err
	}

	n, p := X.Dims()
	if n == 0 || n != len(y) {
		return fmt.Errorf("x has %d rows but y has %d labels", n, len(y))
	}
	if p == 0 {
		return fmt.Errorf("x has no predictor columns")
	}

	positives := 0
	for i, label := range y {
		switch label {
		case 0:
		case 1:
			positives++
		default:
			return fmt.Errorf("label at row %d must be 0 or 1, got %d", i, label)
		}
	}
	if positives == 0 || positives == n {
		return ErrSingleClass
	}

	lr.Scaler = preprocessing.NewScaler(lr.ScaleType)
	Xs, err := lr.Scaler.FitTransform(X)
	if err != nil {
		return fmt.Errorf("failed to scale predictors: %w", err)
	}

	// Augment with a column of ones; the last coefficient is the intercept.
	A := mat.NewDense(n, p+1, nil)
	A.Slice(0, n, 0, p).(*mat.Dense).Copy(Xs)
	for i := 0; i < n; i++ {
		A.Set(i, p, 1)
	}

	target := mat.NewVecDense(n, nil)
	for i, label := range y {
		target.SetVec(i, float64(label))
	}

	lambda := 1 / lr.Params.C
	lipschitz := 0.25 * squaredSpectralNorm(A)
	if lr.Params.Penalty == PenaltyL2 {
		lipschitz += lambda
	}
	step := 1 / lipschitz

	beta := make([]float64, p+1)
	rate := float64(positives) / float64(n)
	beta[p] = math.Log(rate / (1 - rate))

	v := make([]float64, p+1)
	copy(v, beta)
	next := make([]float64, p+1)
	grad := mat.NewVecDense(p+1, nil)
	z := mat.NewVecDense(n, nil)
	t := 1.0

	lr.Converged = false
	lr.NIter = 0
	for iter := 1; iter <= lr.MaxIter; iter++ {
		z.MulVec(A, mat.NewVecDense(p+1, v))
		for i := 0; i < n; i++ {
			z.SetVec(i, sigmoid(z.AtVec(i))-target.AtVec(i))
		}
		grad.MulVec(A.T(), z)

		for j := 0; j <= p; j++ {
			g := grad.AtVec(j)
			if j < p && lr.Params.Penalty == PenaltyL2 {
				g += lambda * v[j]
			}
			next[j] = v[j] - step*g
		}
		if lr.Params.Penalty == PenaltyL1 {
			for j := 0; j < p; j++ {
				next[j] = softThreshold(next[j], step*lambda)
			}
		}

		delta := 0.0
		for j := range next {
			delta = math.Max(delta, math.Abs(next[j]-beta[j]))
		}

		if lr.Params.Solver == SolverFISTA {
			tNext := (1 + math.Sqrt(1+4*t*t)) / 2
			momentum := (t - 1) / tNext
			for j := range v {
				v[j] = next[j] + momentum*(next[j]-beta[j])
			}
			t = tNext
		} else {
			copy(v, next)
		}
		copy(beta, next)
		lr.NIter = iter

		if delta < lr.Tol {
			lr.Converged = true
			break
		}
	}

	if !lr.Converged {
		log.Debug().
			Str("params", lr.Params.String()).
			Int("max_iter", lr.MaxIter).
			Msg("logistic regression did not converge")
	}

	lr.Weights = beta[:p]
	lr.Intercept = beta[p]
	lr.Fitted = true
	return nil
}

func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !lr.Fitted {
		return nil, ErrNotFitted
	}

	Xs, err := lr.Scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("failed to scale predictors: %w", err)
	}

	n, _ := Xs.Dims()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		presence := sigmoid(floats.Dot(Xs.RawRowView(i), lr.Weights) + lr.Intercept)
		proba.Set(i, 0, 1-presence)
		proba.Set(i, 1, presence)
	}
	return proba, nil
}

// NonZero counts the predictors kept by the penalty.
func (lr *LogisticRegression) NonZero() int {
	count := 0
	for _, w := range lr.Weights {
		if w != 0 {
			count++
		}
	}
	return count
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softThreshold(x, k float64) float64 {
	switch {
	case x > k:
		return x - k
	case x < -k:
		return x + k
	default:
		return 0
	}
}

func squaredSpectralNorm(A mat.Matrix) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDNone); !ok {
		// Frobenius norm bounds the spectral norm from above.
		f := mat.Norm(A, 2)
		return f * f
	}
	s := svd.Values(nil)[0]
	if s == 0 {
		return 1
	}
	return s * s
}
