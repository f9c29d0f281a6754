// Package model defines the fitted model variants and the records that flow
// through fitting. Model values are immutable after construction and safe to
// share across goroutines.
package model

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/errs"
	"thunderfit/internal/linalg"
)

// DefaultShuffleRounds is the number of shuffled refits behind a
// linear-shuffle p value. Two rounds give a coarse, high variance estimate;
// the value is kept for parity with existing results.
const DefaultShuffleRounds = 2

type Mode string

const (
	ModeMean          Mode = "mean"
	ModeLinear        Mode = "linear"
	ModeLinearShuffle Mode = "linear-shuffle"
	ModeBilinear      Mode = "bilinear"
	ModeCircular      Mode = "circular"
	ModeGaussian      Mode = "gaussian"
)

// ParseMode maps a mode tag to a Mode.
func ParseMode(tag string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(tag))); mode {
	case ModeMean, ModeLinear, ModeLinearShuffle, ModeBilinear, ModeCircular, ModeGaussian:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", errs.ErrUnrecognizedMode, tag)
	}
}

func (m Mode) IsRegression() bool {
	switch m {
	case ModeMean, ModeLinear, ModeLinearShuffle, ModeBilinear:
		return true
	}
	return false
}

func (m Mode) IsTuning() bool {
	return m == ModeCircular || m == ModeGaussian
}

// Model is the sealed set of fittable variants.
type Model interface {
	Mode() Mode
	// Samples is the response vector length the model accepts.
	Samples() int
	sealed()
}

// TuningModel is implemented by the stimulus tuning variants.
type TuningModel interface {
	Model
	Stimulus() []float64
}

type MeanModel struct {
	x *mat.Dense
}

func NewMean(x mat.Matrix) (*MeanModel, error) {
	if err := checkMatrix("X", x); err != nil {
		return nil, err
	}
	return &MeanModel{x: mat.DenseCopyOf(x)}, nil
}

func (*MeanModel) Mode() Mode      { return ModeMean }
func (*MeanModel) sealed()         {}
func (m *MeanModel) X() mat.Matrix { return m.x }

func (m *MeanModel) Samples() int {
	_, c := m.x.Dims()
	return c
}

// LinearModel holds a bias-augmented design matrix and its projector.
type LinearModel struct {
	x      *mat.Dense
	xhat   *mat.Dense
	groups []float64
	nG     int
}

// NewLinear prepends the bias row to x and precomputes inverse(X·Xᵗ)·X.
// g carries one group label per sample.
func NewLinear(x mat.Matrix, g []float64) (*LinearModel, error) {
	if err := checkMatrix("X", x); err != nil {
		return nil, err
	}
	_, c := x.Dims()
	if len(g) != c {
		return nil, fmt.Errorf("%w: g has %d labels for %d samples", errs.ErrModelConstruction, len(g), c)
	}

	augmented := linalg.PrependBias(x)
	xhat, err := linalg.Projector(augmented)
	if err != nil {
		return nil, fmt.Errorf("%w: X: %v", errs.ErrModelConstruction, err)
	}

	return &LinearModel{
		x:      augmented,
		xhat:   xhat,
		groups: append([]float64(nil), g...),
		nG:     distinct(g),
	}, nil
}

func (*LinearModel) Mode() Mode { return ModeLinear }
func (*LinearModel) sealed()    {}

// X is the design matrix including the leading bias row.
func (m *LinearModel) X() mat.Matrix    { return m.x }
func (m *LinearModel) Xhat() mat.Matrix { return m.xhat }
func (m *LinearModel) GroupCount() int  { return m.nG }

func (m *LinearModel) Groups() []float64 {
	return append([]float64(nil), m.groups...)
}

// Features is the number of design rows excluding the bias row.
func (m *LinearModel) Features() int {
	r, _ := m.x.Dims()
	return r - 1
}

func (m *LinearModel) Samples() int {
	_, c := m.x.Dims()
	return c
}

// LinearShuffleModel is a linear model whose fits also run the circular
// shift permutation test.
type LinearShuffleModel struct {
	LinearModel
	rounds int
}

func NewLinearShuffle(x mat.Matrix, g []float64) (*LinearShuffleModel, error) {
	linear, err := NewLinear(x, g)
	if err != nil {
		return nil, err
	}
	return &LinearShuffleModel{LinearModel: *linear, rounds: DefaultShuffleRounds}, nil
}

func (*LinearShuffleModel) Mode() Mode { return ModeLinearShuffle }
func (m *LinearShuffleModel) Rounds() int {
	return m.rounds
}

type BilinearModel struct {
	x1    *mat.Dense
	x2    *mat.Dense
	x1hat *mat.Dense
}

func NewBilinear(x1, x2 mat.Matrix) (*BilinearModel, error) {
	if err := checkMatrix("X1", x1); err != nil {
		return nil, err
	}
	if err := checkMatrix("X2", x2); err != nil {
		return nil, err
	}
	_, c1 := x1.Dims()
	_, c2 := x2.Dims()
	if c1 != c2 {
		return nil, fmt.Errorf("%w: X1 has %d samples, X2 has %d", errs.ErrModelConstruction, c1, c2)
	}

	x1hat, err := linalg.Projector(x1)
	if err != nil {
		return nil, fmt.Errorf("%w: X1: %v", errs.ErrModelConstruction, err)
	}
	return &BilinearModel{
		x1:    mat.DenseCopyOf(x1),
		x2:    mat.DenseCopyOf(x2),
		x1hat: x1hat,
	}, nil
}

func (*BilinearModel) Mode() Mode          { return ModeBilinear }
func (*BilinearModel) sealed()             {}
func (m *BilinearModel) X1() mat.Matrix    { return m.x1 }
func (m *BilinearModel) X2() mat.Matrix    { return m.x2 }
func (m *BilinearModel) X1hat() mat.Matrix { return m.x1hat }

func (m *BilinearModel) Samples() int {
	_, c := m.x1.Dims()
	return c
}

// CircularTuningModel fits a von Mises style preferred stimulus and concentration.
type CircularTuningModel struct {
	s []float64
}

func NewCircularTuning(s []float64) (*CircularTuningModel, error) {
	if err := checkStimulus(s); err != nil {
		return nil, err
	}
	return &CircularTuningModel{s: append([]float64(nil), s...)}, nil
}

func (*CircularTuningModel) Mode() Mode     { return ModeCircular }
func (*CircularTuningModel) sealed()        {}
func (m *CircularTuningModel) Samples() int { return len(m.s) }

func (m *CircularTuningModel) Stimulus() []float64 {
	return append([]float64(nil), m.s...)
}

// GaussianTuningModel fits a weighted mean and variance of the stimulus.
type GaussianTuningModel struct {
	s []float64
}

func NewGaussianTuning(s []float64) (*GaussianTuningModel, error) {
	if err := checkStimulus(s); err != nil {
		return nil, err
	}
	return &GaussianTuningModel{s: append([]float64(nil), s...)}, nil
}

func (*GaussianTuningModel) Mode() Mode     { return ModeGaussian }
func (*GaussianTuningModel) sealed()        {}
func (m *GaussianTuningModel) Samples() int { return len(m.s) }

func (m *GaussianTuningModel) Stimulus() []float64 {
	return append([]float64(nil), m.s...)
}

// NewTuning builds the tuning variant named by mode.
func NewTuning(mode Mode, s []float64) (TuningModel, error) {
	switch mode {
	case ModeCircular:
		m, err := NewCircularTuning(s)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModeGaussian:
		m, err := NewGaussianTuning(s)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %w: %q is not a tuning mode", errs.ErrModelConstruction, errs.ErrUnrecognizedMode, mode)
	}
}

func checkMatrix(name string, x mat.Matrix) error {
	if x == nil {
		return fmt.Errorf("%w: %s is missing", errs.ErrModelConstruction, name)
	}
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("%w: %s is empty", errs.ErrModelConstruction, name)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := x.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%d,%d] is not finite", errs.ErrModelConstruction, name, i, j)
			}
		}
	}
	return nil
}

func checkStimulus(s []float64) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: s is empty", errs.ErrModelConstruction)
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: s[%d] is not finite", errs.ErrModelConstruction, i)
		}
	}
	return nil
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
