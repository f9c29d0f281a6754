// Package builder loads design matrices through a loader and assembles the
// immutable model variant selected by a mode tag.
package builder

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/errs"
	"thunderfit/internal/loader"
	"thunderfit/internal/model"
)

// Build loads the inputs mode needs from base and constructs the model.
// Every failure wraps errs.ErrModelConstruction; no partial model is returned.
func Build(ctx context.Context, src loader.Loader, base string, tag string) (model.Model, error) {
	mode, err := model.ParseMode(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrModelConstruction, err)
	}

	switch mode {
	case model.ModeMean:
		x, err := load(ctx, src, base, loader.SuffixX)
		if err != nil {
			return nil, err
		}
		m, err := model.NewMean(x)
		if err != nil {
			return nil, err
		}
		return m, nil

	case model.ModeLinear, model.ModeLinearShuffle:
		x, err := load(ctx, src, base, loader.SuffixX)
		if err != nil {
			return nil, err
		}
		gm, err := load(ctx, src, base, loader.SuffixG)
		if err != nil {
			return nil, err
		}
		g := vector(gm)
		if mode == model.ModeLinearShuffle {
			m, err := model.NewLinearShuffle(x, g)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
		m, err := model.NewLinear(x, g)
		if err != nil {
			return nil, err
		}
		return m, nil

	case model.ModeBilinear:
		x1, err := load(ctx, src, base, loader.SuffixX1)
		if err != nil {
			return nil, err
		}
		x2, err := load(ctx, src, base, loader.SuffixX2)
		if err != nil {
			return nil, err
		}
		m, err := model.NewBilinear(x1, x2)
		if err != nil {
			return nil, err
		}
		return m, nil

	case model.ModeCircular, model.ModeGaussian:
		sm, err := load(ctx, src, base, loader.SuffixS)
		if err != nil {
			return nil, err
		}
		m, err := model.NewTuning(mode, vector(sm))
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: %w: %q", errs.ErrModelConstruction, errs.ErrUnrecognizedMode, tag)
	}
}

func load(ctx context.Context, src loader.Loader, base, suffix string) (*mat.Dense, error) {
	m, err := src.Load(ctx, base, suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s%s: %w", errs.ErrModelConstruction, base, suffix, err)
	}
	return m, nil
}

// vector flattens a 1-D input stored either as a row or as a column.
func vector(m *mat.Dense) []float64 {
	r, c := m.Dims()
	if r == 1 {
		return mat.Row(nil, 0, m)
	}
	if c == 1 {
		return mat.Col(nil, 0, m)
	}
	return mat.Row(nil, 0, m)
}
