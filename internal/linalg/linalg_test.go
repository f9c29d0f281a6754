package linalg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPrependBias(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	got := PrependBias(x)

	r, c := got.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 3, c)
	require.Equal(t, []float64{1, 1, 1}, mat.Row(nil, 0, got))
	require.Equal(t, []float64{4, 5, 6}, mat.Row(nil, 2, got))
	require.Equal(t, 1.0, x.At(0, 0), "input must not change")
}

func TestProjectorRecoversCoefficients(t *testing.T) {
	x := PrependBias(mat.NewDense(1, 4, []float64{0, 1, 2, 3}))
	xhat, err := Projector(x)
	require.NoError(t, err)

	b := MulVec(xhat, []float64{1, 3, 5, 7})
	require.InDeltaSlice(t, []float64{1, 2}, b, 1e-12)
	require.InDeltaSlice(t, []float64{1, 3, 5, 7}, Predict(b, x), 1e-12)
}

func TestProjectorSingular(t *testing.T) {
	x := PrependBias(mat.NewDense(1, 4, []float64{1, 1, 1, 1}))
	_, err := Projector(x)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSingular))
}

func TestRollRow(t *testing.T) {
	m := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	RollRow(m, 0, 1)
	RollRow(m, 1, 4)
	require.Equal(t, []float64{4, 1, 2, 3}, mat.Row(nil, 0, m))
	require.Equal(t, []float64{5, 6, 7, 8}, mat.Row(nil, 1, m))

	RollRow(m, 1, -1)
	require.Equal(t, []float64{6, 7, 8, 5}, mat.Row(nil, 1, m))
}

func TestLeastSquares(t *testing.T) {
	a := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
	b, err := LeastSquares(a, []float64{2, 4, 6, 8})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{2, 2}, b, 1e-10)
}

func TestLeastSquaresRankDeficient(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{
		1, 1,
		1, 1,
		1, 1,
	})
	b, err := LeastSquares(a, []float64{2, 2, 2})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 1}, b, 1e-10)
}

func TestSumSquares(t *testing.T) {
	require.Equal(t, 5.0, SumSquares([]float64{1, 2}, []float64{0, 4}))
}
