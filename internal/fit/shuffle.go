package fit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/linalg"
)

// ShuffleTester estimates how often a design with randomly misaligned rows
// explains y better than the true design. Each round copies the design,
// circularly shifts every row by its own offset drawn from [0, columns] and
// refits by ordinary least squares.
//
// With the default of two rounds p can only be 0, 0.5 or 1; treat it as a
// coarse screen rather than a calibrated significance level.
type ShuffleTester struct {
	Rounds int
	Rand   *rand.Rand
}

// Test returns the fraction of rounds whose R² exceeds r2. sst is the total
// sum of squares of y, shared with the unshuffled fit.
func (t ShuffleTester) Test(x mat.Matrix, y []float64, r2, sst float64) (float64, error) {
	if t.Rounds <= 0 {
		return 0, errors.New("shuffle test: rounds must be positive")
	}
	if t.Rand == nil {
		return 0, errors.New("shuffle test: random source is required")
	}

	exceeded := 0
	for round := 0; round < t.Rounds; round++ {
		shuffled := t.shuffle(x)
		b, err := linalg.LeastSquares(shuffled.T(), y)
		if err != nil {
			return 0, fmt.Errorf("shuffle round %d: %w", round, err)
		}
		sse := linalg.SumSquares(linalg.Predict(b, shuffled), y)
		if 1-sse/sst > r2 {
			exceeded++
		}
	}
	return float64(exceeded) / float64(t.Rounds), nil
}

// shuffle returns a copy of x with each row rolled by round(u*cols), one
// uniform draw u per row.
func (t ShuffleTester) shuffle(x mat.Matrix) *mat.Dense {
	rows, cols := x.Dims()
	shuffled := mat.DenseCopyOf(x)
	for i := 0; i < rows; i++ {
		shift := int(math.Round(t.Rand.Float64() * float64(cols)))
		linalg.RollRow(shuffled, i, shift)
	}
	return shuffled
}
