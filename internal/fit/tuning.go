package fit

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"thunderfit/internal/errs"
	"thunderfit/internal/model"
)

// Tuning fits the preferred stimulus and its spread for y. y is never
// modified; shifting and clipping happen on a copy.
func Tuning(y []float64, m model.Model) (model.TuningResult, error) {
	if err := checkResponse(y, m); err != nil {
		return model.TuningResult{}, err
	}

	switch v := m.(type) {
	case *model.CircularTuningModel:
		return fitCircular(y, v.Stimulus())
	case *model.GaussianTuningModel:
		return fitGaussian(y, v.Stimulus())
	default:
		return model.TuningResult{}, fmt.Errorf("tuning fit: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}
}

// fitCircular treats s as phases and summarizes the response weighted
// resultant: its angle is the preferred stimulus and its length drives a
// von Mises concentration estimate.
func fitCircular(y, s []float64) (model.TuningResult, error) {
	w := append([]float64(nil), y...)
	floats.AddConst(-floats.Min(w), w)
	if err := normalize(w); err != nil {
		return model.TuningResult{}, err
	}

	var r complex128
	for i, weight := range w {
		r += complex(weight, 0) * cmplx.Exp(complex(0, s[i]))
	}
	mu := cmplx.Phase(r)
	v := cmplx.Abs(r) / floats.Sum(w)

	k, err := Concentration(v)
	if err != nil {
		return model.TuningResult{}, err
	}
	return model.TuningResult{Mu: mu, Spread: k}, nil
}

// Concentration approximates the von Mises k for a mean resultant length v.
func Concentration(v float64) (float64, error) {
	switch {
	case v < 0.53:
		return 2*v + math.Pow(v, 3) + 5*math.Pow(v, 5)/6, nil
	case v < 0.85:
		return -0.4 + 1.39*v + 0.43/(1-v), nil
	default:
		d := math.Pow(v, 3) - 4*math.Pow(v, 2) + 3*v
		if d <= 0 {
			return 0, fmt.Errorf("%w: resultant length %.6g leaves concentration unbounded", errs.ErrDegenerateFit, v)
		}
		return 1 / d, nil
	}
}

func fitGaussian(y, s []float64) (model.TuningResult, error) {
	w := append([]float64(nil), y...)
	for i, v := range w {
		if v < 0 {
			w[i] = 0
		}
	}
	if err := normalize(w); err != nil {
		return model.TuningResult{}, err
	}

	mu := floats.Dot(s, w)
	sigma := 0.0
	for i, weight := range w {
		d := s[i] - mu
		sigma += d * d * weight
	}
	return model.TuningResult{Mu: mu, Spread: sigma}, nil
}

func normalize(w []float64) error {
	total := floats.Sum(w)
	if total == 0 {
		return fmt.Errorf("%w: response has no positive mass", errs.ErrDegenerateFit)
	}
	floats.Scale(1/total, w)
	return nil
}
