package fit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/model"
)

func shuffleModel(t *testing.T) *model.LinearShuffleModel {
	t.Helper()
	m, err := model.NewLinearShuffle(
		mat.NewDense(2, 8, []float64{
			0, 1, 2, 3, 4, 5, 6, 7,
			1, 0, 0, 1, 1, 0, 0, 1,
		}),
		[]float64{0, 0, 0, 0, 1, 1, 1, 1},
	)
	require.NoError(t, err)
	return m
}

func TestLinearShuffleReproducibleWithSeed(t *testing.T) {
	m := shuffleModel(t)
	y := []float64{0.5, 1.1, 2.3, 2.9, 4.4, 5.2, 5.8, 7.3}

	first, err := Regression(y, m, WithRand(rand.New(rand.NewSource(11))))
	require.NoError(t, err)
	second, err := Regression(y, m, WithRand(rand.New(rand.NewSource(11))))
	require.NoError(t, err)

	require.NotNil(t, first.P)
	require.Equal(t, *first.P, *second.P)
	require.Equal(t, first.Coefficients, second.Coefficients)
	require.Len(t, first.Coefficients, 2)
}

func TestLinearShufflePInUnitInterval(t *testing.T) {
	m := shuffleModel(t)
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 25; trial++ {
		y := make([]float64, 8)
		for i := range y {
			y[i] = rng.NormFloat64()
		}
		res, err := Regression(y, m)
		require.NoError(t, err)
		require.GreaterOrEqual(t, *res.P, 0.0)
		require.LessOrEqual(t, *res.P, 1.0)
		require.Contains(t, []float64{0, 0.5, 1}, *res.P)
	}
}

func TestLinearShuffleMatchesLinearCoefficients(t *testing.T) {
	shuffle := shuffleModel(t)
	linear, err := model.NewLinear(
		mat.NewDense(2, 8, []float64{
			0, 1, 2, 3, 4, 5, 6, 7,
			1, 0, 0, 1, 1, 0, 0, 1,
		}),
		[]float64{0, 0, 0, 0, 1, 1, 1, 1},
	)
	require.NoError(t, err)

	y := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	want, err := Regression(y, linear)
	require.NoError(t, err)
	got, err := Regression(y, shuffle, WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	require.Equal(t, want.Coefficients, got.Coefficients)
	require.Equal(t, want.R2, got.R2)
}

func TestShuffleTesterPerfectFitNeverExceeded(t *testing.T) {
	m, err := model.NewLinearShuffle(mat.NewDense(1, 4, []float64{0, 1, 2, 3}), []float64{0, 0, 1, 1})
	require.NoError(t, err)

	for seed := int64(0); seed < 10; seed++ {
		res, err := Regression([]float64{1, 2, 3, 4}, m, WithRand(rand.New(rand.NewSource(seed))))
		require.NoError(t, err)
		require.Equal(t, 0.0, *res.P)
	}
}

func TestShuffleTesterValidates(t *testing.T) {
	x := mat.NewDense(1, 3, []float64{1, 2, 3})
	_, err := ShuffleTester{Rounds: 0, Rand: rand.New(rand.NewSource(1))}.Test(x, []float64{1, 2, 3}, 0.5, 2)
	require.Error(t, err)

	_, err = ShuffleTester{Rounds: 2}.Test(x, []float64{1, 2, 3}, 0.5, 2)
	require.Error(t, err)
}

func TestShuffleTesterLeavesDesignUntouched(t *testing.T) {
	m := shuffleModel(t)
	before := mat.DenseCopyOf(m.X())

	_, err := Regression([]float64{0.5, 1.1, 2.3, 2.9, 4.4, 5.2, 5.8, 7.3}, m, WithRand(rand.New(rand.NewSource(2))))
	require.NoError(t, err)
	require.True(t, mat.Equal(before, m.X()))
}

func TestShuffleTesterRollsEachRowByItsOwnOffset(t *testing.T) {
	x := mat.NewDense(4, 5, []float64{
		0, 1, 2, 3, 4,
		10, 11, 12, 13, 14,
		20, 21, 22, 23, 24,
		30, 31, 32, 33, 34,
	})
	rows, cols := x.Dims()
	tester := ShuffleTester{Rounds: 1, Rand: rand.New(rand.NewSource(5))}
	twin := rand.New(rand.NewSource(5))

	distinct := false
	for round := 0; round < 50; round++ {
		got := tester.shuffle(x)

		shifts := make([]int, rows)
		for i := range shifts {
			shifts[i] = int(math.Round(twin.Float64() * float64(cols)))
			require.GreaterOrEqual(t, shifts[i], 0)
			require.LessOrEqual(t, shifts[i], cols)
			if shifts[i]%cols != shifts[0]%cols {
				distinct = true
			}
		}
		for i, shift := range shifts {
			for j := 0; j < cols; j++ {
				require.Equal(t, x.At(i, j), got.At(i, (j+shift)%cols), "round %d row %d", round, i)
			}
		}
	}
	require.True(t, distinct, "rows never received different offsets")
}

func TestShuffleTesterDrawsOncePerRowPerRound(t *testing.T) {
	m := shuffleModel(t)
	rows, _ := m.X().Dims()
	y := []float64{0.5, 1.1, 2.3, 2.9, 4.4, 5.2, 5.8, 7.3}
	const rounds = 3

	rng := rand.New(rand.NewSource(9))
	_, err := ShuffleTester{Rounds: rounds, Rand: rng}.Test(m.X(), y, 0.5, 40)
	require.NoError(t, err)

	twin := rand.New(rand.NewSource(9))
	for i := 0; i < rounds*rows; i++ {
		twin.Float64()
	}
	require.Equal(t, twin.Float64(), rng.Float64())
}
