// Package curve bins response vectors by their fitted preferred stimulus and
// reports the mean and sample variance of each bin.
package curve

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"thunderfit/internal/dataset"
	"thunderfit/internal/errs"
	"thunderfit/internal/fit"
	"thunderfit/internal/model"
)

const (
	// Bins is the fixed number of stimulus bins.
	Bins = 3
	// WeightThreshold is the weight a record must exceed to be aggregated.
	WeightThreshold = 0.005
)

type tuned struct {
	values []float64
	weight float64
	mu     float64
	err    error
}

// Boundaries returns Bins+1 evenly spaced points from min(s) to max(s).
func Boundaries(s []float64) []float64 {
	return floats.Span(make([]float64, Bins+1), floats.Min(s), floats.Max(s))
}

// Aggregate fits every record once against m and builds one CurveBin per
// stimulus bin. A record joins a bin when its weight exceeds WeightThreshold
// and its preferred stimulus lies strictly between the bin edges. Bins with
// fewer than two records carry a degenerate-fit error instead of a variance.
func Aggregate(ctx context.Context, coll *dataset.Collection[model.Weighted], m model.TuningModel) (model.Curves, error) {
	fitted, err := dataset.Map(ctx, coll, func(w model.Weighted) tuned {
		res, err := fit.Tuning(w.Values, m)
		return tuned{values: w.Values, weight: w.Weight, mu: res.Mu, err: err}
	})
	if err != nil {
		return model.Curves{}, err
	}

	failed, err := fitted.Filter(ctx, func(t tuned) bool { return t.err != nil })
	if err != nil {
		return model.Curves{}, err
	}

	edges := Boundaries(m.Stimulus())
	curves := model.Curves{Bins: make([]model.CurveBin, 0, Bins), Excluded: failed.Count()}
	for i := 0; i < Bins; i++ {
		bin, err := aggregateBin(ctx, fitted, edges[i], edges[i+1])
		if err != nil {
			return model.Curves{}, err
		}
		curves.Bins = append(curves.Bins, bin)
	}
	return curves, nil
}

func aggregateBin(ctx context.Context, fitted *dataset.Collection[tuned], lo, hi float64) (model.CurveBin, error) {
	bin := model.CurveBin{Lo: lo, Hi: hi}

	subset, err := fitted.Filter(ctx, func(t tuned) bool {
		return t.err == nil && t.weight > WeightThreshold && t.mu > lo && t.mu < hi
	})
	if err != nil {
		return bin, err
	}
	bin.Count = subset.Count()
	if bin.Count == 0 {
		return degenerate(bin), nil
	}

	values, err := dataset.Map(ctx, subset, func(t tuned) []float64 { return t.values })
	if err != nil {
		return bin, err
	}
	sum, err := dataset.Reduce(ctx, values, addVectors)
	if err != nil {
		return bin, err
	}
	// a single record reduces to its own slice
	bin.Mean = append([]float64(nil), sum...)
	floats.Scale(1/float64(bin.Count), bin.Mean)
	if bin.Count == 1 {
		return degenerate(bin), nil
	}

	deviations, err := dataset.Map(ctx, values, func(v []float64) []float64 {
		d := make([]float64, len(v))
		for i := range v {
			diff := v[i] - bin.Mean[i]
			d[i] = diff * diff
		}
		return d
	})
	if err != nil {
		return bin, err
	}
	squares, err := dataset.Reduce(ctx, deviations, addVectors)
	if err != nil {
		return bin, err
	}
	floats.Scale(1/float64(bin.Count-1), squares)
	bin.Variance = squares
	return bin, nil
}

func degenerate(bin model.CurveBin) model.CurveBin {
	bin.Err = fmt.Errorf("%w: bin (%g, %g) has %d records", errs.ErrDegenerateFit, bin.Lo, bin.Hi, bin.Count)
	bin.Note = bin.Err.Error()
	return bin
}

func addVectors(a, b []float64) []float64 {
	return floats.AddTo(make([]float64, len(a)), a, b)
}
