// Package fit applies a model to response vectors. Every per-record routine
// is pure: it reads the shared model and the record and returns a fresh
// result, so records can be fitted concurrently in any order.
package fit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"thunderfit/internal/errs"
	"thunderfit/internal/linalg"
	"thunderfit/internal/model"
)

// bilinearEpsilon lifts an all-zero first stage response so the second stage
// design is not identically zero.
const bilinearEpsilon = 0.001

type settings struct {
	rng *rand.Rand
}

type Option func(*settings)

// WithRand sets the random source used by the shuffle test. A *rand.Rand is
// not safe for concurrent use; give each goroutine its own.
func WithRand(rng *rand.Rand) Option {
	return func(s *settings) {
		s.rng = rng
	}
}

// Regression fits y against a regression model variant.
func Regression(y []float64, m model.Model, opts ...Option) (model.RegressionResult, error) {
	if err := checkResponse(y, m); err != nil {
		return model.RegressionResult{}, err
	}

	switch v := m.(type) {
	case *model.MeanModel:
		return fitMean(v, y), nil
	case *model.LinearModel:
		return fitLinear(v, y)
	case *model.LinearShuffleModel:
		var s settings
		for _, opt := range opts {
			opt(&s)
		}
		if s.rng == nil {
			s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		return fitLinearShuffle(v, y, s.rng)
	case *model.BilinearModel:
		return fitBilinear(v, y)
	default:
		return model.RegressionResult{}, fmt.Errorf("regression fit: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}
}

func fitMean(m *model.MeanModel, y []float64) model.RegressionResult {
	return model.RegressionResult{
		Coefficients: linalg.MulVec(m.X(), y),
		R2:           1,
	}
}

func fitLinear(m *model.LinearModel, y []float64) (model.RegressionResult, error) {
	b, r2, _, err := project(m.X(), m.Xhat(), y)
	if err != nil {
		return model.RegressionResult{}, err
	}
	return model.RegressionResult{Coefficients: dropBias(b), R2: r2}, nil
}

func fitLinearShuffle(m *model.LinearShuffleModel, y []float64, rng *rand.Rand) (model.RegressionResult, error) {
	b, r2, sst, err := project(m.X(), m.Xhat(), y)
	if err != nil {
		return model.RegressionResult{}, err
	}

	tester := ShuffleTester{Rounds: m.Rounds(), Rand: rng}
	p, err := tester.Test(m.X(), y, r2, sst)
	if err != nil {
		return model.RegressionResult{}, err
	}
	return model.RegressionResult{Coefficients: dropBias(b), R2: r2, P: &p}, nil
}

func fitBilinear(m *model.BilinearModel, y []float64) (model.RegressionResult, error) {
	b1 := linalg.MulVec(m.X1hat(), y)
	floats.AddConst(-floats.Min(b1), b1)

	b1hat := linalg.MulVec(m.X1().T(), b1)
	if floats.Sum(b1hat) == 0 {
		floats.AddConst(bilinearEpsilon, b1hat)
	}

	x2 := m.X2()
	r, c := x2.Dims()
	scaled := mat.NewDense(r, c, nil)
	scaled.Apply(func(_, j int, v float64) float64 {
		return v * b1hat[j]
	}, x2)
	x3 := linalg.PrependBias(scaled)

	x3hat, err := linalg.Projector(x3)
	if err != nil {
		return model.RegressionResult{}, fmt.Errorf("bilinear second stage: %w: %v", errs.ErrDegenerateFit, err)
	}
	b2, r2, _, err := project(x3, x3hat, y)
	if err != nil {
		return model.RegressionResult{}, err
	}
	return model.RegressionResult{Coefficients: dropBias(b2), R2: r2, StageOne: b1}, nil
}

// project fits y with a precomputed projector and returns the coefficients,
// R² and the total sum of squares.
func project(x, xhat mat.Matrix, y []float64) ([]float64, float64, float64, error) {
	b := linalg.MulVec(xhat, y)
	sst := totalSumSquares(y)
	if sst == 0 {
		return nil, 0, 0, fmt.Errorf("%w: response has zero variance", errs.ErrDegenerateFit)
	}
	sse := linalg.SumSquares(linalg.Predict(b, x), y)
	return b, 1 - sse/sst, sst, nil
}

func totalSumSquares(y []float64) float64 {
	mean := stat.Mean(y, nil)
	acc := 0.0
	for _, v := range y {
		d := v - mean
		acc += d * d
	}
	return acc
}

func dropBias(b []float64) []float64 {
	return append([]float64(nil), b[1:]...)
}

func checkResponse(y []float64, m model.Model) error {
	if len(y) != m.Samples() {
		return fmt.Errorf("%w: response has %d samples, model expects %d", errs.ErrShapeMismatch, len(y), m.Samples())
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: response[%d] is not finite", errs.ErrDegenerateFit, i)
		}
	}
	return nil
}
