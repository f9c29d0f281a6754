// Package linalg wraps the gonum matrix operations the fitters share: bias
// augmentation, pseudo-inverse projectors, circular row shifts and SVD least
// squares.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular reports a Gram matrix X·Xᵗ with no inverse.
var ErrSingular = errors.New("matrix is singular")

// PrependBias returns a copy of x with a row of ones stacked above it.
func PrependBias(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r+1, c, nil)
	for j := 0; j < c; j++ {
		out.Set(0, j, 1)
	}
	out.Slice(1, r+1, 0, c).(*mat.Dense).Copy(x)
	return out
}

// Projector computes inverse(x·xᵗ)·x. Rows of x are features, columns are samples.
func Projector(x mat.Matrix) (*mat.Dense, error) {
	var gram mat.Dense
	gram.Mul(x, x.T())

	var inv mat.Dense
	if err := inv.Inverse(&gram); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	var out mat.Dense
	out.Mul(&inv, x)
	return &out, nil
}

// MulVec returns a·v as a fresh slice. v is not retained or modified.
func MulVec(a mat.Matrix, v []float64) []float64 {
	r, _ := a.Dims()
	out := mat.NewVecDense(r, nil)
	out.MulVec(a, mat.NewVecDense(len(v), v))
	return out.RawVector().Data
}

// Predict returns bᵗ·x, the fitted response for coefficients b over design x.
func Predict(b []float64, x mat.Matrix) []float64 {
	return MulVec(x.T(), b)
}

// RollRow circularly shifts row i of m right by shift positions in place.
func RollRow(m *mat.Dense, i, shift int) {
	_, c := m.Dims()
	if c == 0 {
		return
	}
	shift %= c
	if shift < 0 {
		shift += c
	}
	if shift == 0 {
		return
	}
	row := mat.Row(nil, i, m)
	for j, v := range row {
		m.Set(i, (j+shift)%c, v)
	}
}

// LeastSquares solves min ||a·b − y|| for b using a thin SVD. Rank deficient
// systems get the minimum-norm solution; singular values below
// eps·max(rows, cols) relative to the largest are treated as zero.
func LeastSquares(a mat.Matrix, y []float64) ([]float64, error) {
	r, c := a.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("least squares: %d rows for %d observations", r, len(y))
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("least squares: svd factorization failed")
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(r, c))
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, fmt.Errorf("least squares: %w", ErrSingular)
	}

	var b mat.VecDense
	svd.SolveVecTo(&b, mat.NewVecDense(len(y), y), rank)
	return b.RawVector().Data, nil
}

// SumSquares returns Σ(a_i − b_i)².
func SumSquares(a, b []float64) float64 {
	acc := 0.0
	for i := range a {
		d := a[i] - b[i]
		acc += d * d
	}
	return acc
}
