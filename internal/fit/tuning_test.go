package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"thunderfit/internal/errs"
	"thunderfit/internal/model"
)

var quarterTurns = []float64{0, math.Pi / 2, math.Pi, 3 * math.Pi / 2}

func TestGaussianTuningPeak(t *testing.T) {
	m, err := model.NewGaussianTuning([]float64{1, 2, 3})
	require.NoError(t, err)

	res, err := Tuning([]float64{0, 1, 0}, m)
	require.NoError(t, err)
	require.Equal(t, 2.0, res.Mu)
	require.Equal(t, 0.0, res.Spread)
}

func TestGaussianTuningClipsOnCopy(t *testing.T) {
	m, err := model.NewGaussianTuning([]float64{1, 2, 3})
	require.NoError(t, err)

	y := []float64{-1, 1, 1}
	res, err := Tuning(y, m)
	require.NoError(t, err)
	require.InDelta(t, 2.5, res.Mu, 1e-12)
	require.InDelta(t, 0.25, res.Spread, 1e-12)
	require.Equal(t, []float64{-1, 1, 1}, y)
}

func TestGaussianTuningNoMass(t *testing.T) {
	m, err := model.NewGaussianTuning([]float64{1, 2, 3})
	require.NoError(t, err)
	_, err = Tuning([]float64{-1, 0, -2}, m)
	require.ErrorIs(t, err, errs.ErrDegenerateFit)
}

func TestCircularTuningBalancedResponse(t *testing.T) {
	m, err := model.NewCircularTuning(quarterTurns)
	require.NoError(t, err)

	y := []float64{1, 0, 1, 0}
	res, err := Tuning(y, m)
	require.NoError(t, err)
	require.InDelta(t, 0.0, res.Spread, 1e-12)
	require.Equal(t, []float64{1, 0, 1, 0}, y)
}

func TestCircularTuningPreferredDirection(t *testing.T) {
	m, err := model.NewCircularTuning(quarterTurns)
	require.NoError(t, err)

	res, err := Tuning([]float64{3, 2, 1, 2}, m)
	require.NoError(t, err)
	require.InDelta(t, 0.0, res.Mu, 1e-12)
	require.InDelta(t, 1.0+0.125+5*math.Pow(0.5, 5)/6, res.Spread, 1e-12)

	res, err = Tuning([]float64{1, 2, 3, 2}, m)
	require.NoError(t, err)
	require.InDelta(t, math.Pi, math.Abs(res.Mu), 1e-12)
}

func TestCircularTuningDegenerate(t *testing.T) {
	m, err := model.NewCircularTuning(quarterTurns)
	require.NoError(t, err)

	_, err = Tuning([]float64{2, 2, 2, 2}, m)
	require.ErrorIs(t, err, errs.ErrDegenerateFit)

	_, err = Tuning([]float64{0, 0, 5, 0}, m)
	require.ErrorIs(t, err, errs.ErrDegenerateFit)
}

func TestConcentrationBranches(t *testing.T) {
	cases := []struct {
		v    float64
		want float64
	}{
		{0, 0},
		{0.5, 1.0 + 0.125 + 5*math.Pow(0.5, 5)/6},
		{0.6, -0.4 + 1.39*0.6 + 0.43/0.4},
		{0.9, 1 / (0.729 - 4*0.81 + 2.7)},
	}
	for _, tc := range cases {
		got, err := Concentration(tc.v)
		require.NoError(t, err)
		require.InDelta(t, tc.want, got, 1e-9, "v=%v", tc.v)
	}

	_, err := Concentration(1)
	require.ErrorIs(t, err, errs.ErrDegenerateFit)
}

func TestTuningRejectsRegressionModel(t *testing.T) {
	m := mustLinear(t, 1, []float64{0, 1, 2}, []float64{0, 1, 1})
	_, err := Tuning([]float64{1, 2, 3}, m)
	require.ErrorIs(t, err, errs.ErrUnrecognizedMode)
}
