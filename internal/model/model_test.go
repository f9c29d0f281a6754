package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/errs"
)

func TestParseMode(t *testing.T) {
	for _, tag := range []string{"mean", "linear", "linear-shuffle", "bilinear", "circular", "gaussian", " Linear "} {
		if _, err := ParseMode(tag); err != nil {
			t.Fatalf("parse %q: %v", tag, err)
		}
	}
	_, err := ParseMode("shotgun")
	require.ErrorIs(t, err, errs.ErrUnrecognizedMode)

	require.True(t, ModeBilinear.IsRegression())
	require.False(t, ModeBilinear.IsTuning())
	require.True(t, ModeGaussian.IsTuning())
}

func TestNewLinearPrependsBias(t *testing.T) {
	x := mat.NewDense(2, 4, []float64{
		0, 1, 2, 3,
		1, 0, 1, 0,
	})
	m, err := NewLinear(x, []float64{0, 0, 1, 1})
	require.NoError(t, err)

	r, c := m.X().Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 4, c)
	require.Equal(t, 2, m.Features())
	require.Equal(t, 4, m.Samples())
	require.Equal(t, 2, m.GroupCount())
	require.Equal(t, []float64{1, 1, 1, 1}, mat.Row(nil, 0, m.X()))

	xr, xc := m.Xhat().Dims()
	require.Equal(t, 3, xr)
	require.Equal(t, 4, xc)
}

func TestNewLinearSingularFails(t *testing.T) {
	x := mat.NewDense(1, 4, []float64{1, 1, 1, 1})
	_, err := NewLinear(x, []float64{0, 0, 1, 1})
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrModelConstruction))
}

func TestNewLinearGroupLengthMismatch(t *testing.T) {
	x := mat.NewDense(1, 4, []float64{0, 1, 2, 3})
	_, err := NewLinear(x, []float64{0, 1})
	require.ErrorIs(t, err, errs.ErrModelConstruction)
}

func TestNewLinearShuffleRounds(t *testing.T) {
	x := mat.NewDense(1, 4, []float64{0, 1, 2, 3})
	m, err := NewLinearShuffle(x, []float64{0, 0, 1, 1})
	require.NoError(t, err)
	require.Equal(t, ModeLinearShuffle, m.Mode())
	require.Equal(t, 2, m.Rounds())
}

func TestNewBilinearValidatesShapes(t *testing.T) {
	x1 := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 1})
	_, err := NewBilinear(x1, mat.NewDense(1, 2, []float64{1, 2}))
	require.ErrorIs(t, err, errs.ErrModelConstruction)

	m, err := NewBilinear(x1, mat.NewDense(1, 3, []float64{1, 2, 3}))
	require.NoError(t, err)
	require.Equal(t, 3, m.Samples())
}

func TestNewTuning(t *testing.T) {
	m, err := NewTuning(ModeCircular, []float64{0, 1, 2})
	require.NoError(t, err)
	require.Equal(t, ModeCircular, m.Mode())

	s := m.Stimulus()
	s[0] = 99
	require.Equal(t, 0.0, m.Stimulus()[0], "stimulus must be copied out")

	_, err = NewTuning(ModeLinear, []float64{0})
	require.ErrorIs(t, err, errs.ErrUnrecognizedMode)
	require.ErrorIs(t, err, errs.ErrModelConstruction)

	_, err = NewGaussianTuning(nil)
	require.ErrorIs(t, err, errs.ErrModelConstruction)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := NewGaussianTuning([]float64{1, 2, 3})
	require.NoError(t, err)
	b, err := NewGaussianTuning([]float64{1, 2, 3})
	require.NoError(t, err)
	c, err := NewCircularTuning([]float64{1, 2, 3})
	require.NoError(t, err)

	require.Equal(t, Fingerprint(a), Fingerprint(b))
	require.NotEqual(t, Fingerprint(a), Fingerprint(c))
	require.Len(t, Fingerprint(a), 16)
}
