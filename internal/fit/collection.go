package fit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"thunderfit/internal/dataset"
	"thunderfit/internal/errs"
	"thunderfit/internal/linalg"
	"thunderfit/internal/model"
)

// Outcome is one record's fit. Err is set instead of Result when the fit
// failed, so failures can be counted and excluded downstream.
type Outcome[T any] struct {
	Key    string
	Result T
	Err    error
}

type Summary struct {
	Records  int
	Failures int
}

// Config controls collection level fitting.
type Config struct {
	// Seed fixes the shuffle test random streams when Seeded is set. Each
	// record's stream is derived from the seed and a hash of its values, so p
	// does not depend on partitioning or scheduling.
	Seed   int64
	Seeded bool
}

// RegressCollection fits every record of coll against m.
func RegressCollection(ctx context.Context, coll *dataset.Collection[model.Series], m model.Model, cfg Config) (*dataset.Collection[Outcome[model.RegressionResult]], Summary, error) {
	if !m.Mode().IsRegression() {
		return nil, Summary{}, fmt.Errorf("regression fit: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	base := cfg.base()
	_, shuffled := m.(*model.LinearShuffleModel)
	out, err := dataset.Map(ctx, coll, func(s model.Series) Outcome[model.RegressionResult] {
		var opts []Option
		if shuffled {
			opts = append(opts, WithRand(recordRand(base, s.Values)))
		}
		res, err := Regression(s.Values, m, opts...)
		return Outcome[model.RegressionResult]{Key: s.Key, Result: res, Err: err}
	})
	if err != nil {
		return nil, Summary{}, err
	}

	summary, err := summarize(ctx, out)
	if err != nil {
		return nil, Summary{}, err
	}
	return out, summary, nil
}

// TuneCollection fits every record of coll against a tuning model.
func TuneCollection(ctx context.Context, coll *dataset.Collection[model.Series], m model.Model) (*dataset.Collection[Outcome[model.TuningResult]], Summary, error) {
	if !m.Mode().IsTuning() {
		return nil, Summary{}, fmt.Errorf("tuning fit: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	out, err := dataset.Map(ctx, coll, func(s model.Series) Outcome[model.TuningResult] {
		res, err := Tuning(s.Values, m)
		return Outcome[model.TuningResult]{Key: s.Key, Result: res, Err: err}
	})
	if err != nil {
		return nil, Summary{}, err
	}

	summary, err := summarize(ctx, out)
	if err != nil {
		return nil, Summary{}, err
	}
	return out, summary, nil
}

// Trajectory projects every record's mean-centred coefficients onto comps
// (one component per row) and averages outer(y, projection) over the whole
// collection. The result has one row per sample and one column per
// component. A single failed record fails the reduction.
func Trajectory(ctx context.Context, coll *dataset.Collection[model.Series], m model.Model, comps mat.Matrix, cfg Config) (*mat.Dense, error) {
	if !m.Mode().IsRegression() {
		return nil, fmt.Errorf("trajectory: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	type partial struct {
		sum      *mat.Dense
		failures int
		first    error
	}

	base := cfg.base()
	_, shuffled := m.(*model.LinearShuffleModel)
	parts, err := dataset.Map(ctx, coll, func(s model.Series) partial {
		var opts []Option
		if shuffled {
			opts = append(opts, WithRand(recordRand(base, s.Values)))
		}
		res, err := Regression(s.Values, m, opts...)
		if err != nil {
			return partial{failures: 1, first: fmt.Errorf("record %s: %w", s.Key, err)}
		}
		w, err := projectCoefficients(res.Coefficients, comps)
		if err != nil {
			return partial{failures: 1, first: fmt.Errorf("record %s: %w", s.Key, err)}
		}
		var outer mat.Dense
		outer.Outer(1, mat.NewVecDense(len(s.Values), s.Values), mat.NewVecDense(len(w), w))
		return partial{sum: &outer}
	})
	if err != nil {
		return nil, err
	}

	total, err := dataset.Reduce(ctx, parts, func(a, b partial) partial {
		out := partial{failures: a.failures + b.failures, first: a.first}
		if out.first == nil {
			out.first = b.first
		}
		switch {
		case a.sum == nil:
			out.sum = b.sum
		case b.sum == nil:
			out.sum = a.sum
		default:
			var sum mat.Dense
			sum.Add(a.sum, b.sum)
			out.sum = &sum
		}
		return out
	})
	if err != nil {
		return nil, fmt.Errorf("trajectory: %w", err)
	}
	if total.failures > 0 {
		return nil, fmt.Errorf("trajectory: %d of %d records failed: %w", total.failures, coll.Count(), total.first)
	}

	total.sum.Scale(1/float64(coll.Count()), total.sum)
	return total.sum, nil
}

func projectCoefficients(b []float64, comps mat.Matrix) ([]float64, error) {
	_, p := comps.Dims()
	if len(b) != p {
		return nil, fmt.Errorf("%w: %d coefficients for %d component columns", errs.ErrShapeMismatch, len(b), p)
	}
	centred := append([]float64(nil), b...)
	mean := stat.Mean(centred, nil)
	for i := range centred {
		centred[i] -= mean
	}
	return linalg.MulVec(comps, centred), nil
}

func summarize[T any](ctx context.Context, out *dataset.Collection[Outcome[T]]) (Summary, error) {
	failed, err := out.Filter(ctx, func(o Outcome[T]) bool { return o.Err != nil })
	if err != nil {
		return Summary{}, err
	}
	return Summary{Records: out.Count(), Failures: failed.Count()}, nil
}

func (c Config) base() int64 {
	if c.Seeded {
		return c.Seed
	}
	return time.Now().UnixNano()
}

func recordRand(base int64, values []float64) *rand.Rand {
	return rand.New(rand.NewSource(base ^ int64(model.HashValues(values))))
}
