package storage

import (
	"context"

	"thunderfit/internal/model"
)

// Store persists fit runs and their outputs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error
	SaveResults(ctx context.Context, runID string, results []model.RecordResult) error
	GetResults(ctx context.Context, runID string) ([]model.RecordResult, bool, error)
	SaveCurves(ctx context.Context, runID string, curves model.Curves) error
	GetCurves(ctx context.Context, runID string) (model.Curves, bool, error)
	SaveTrajectory(ctx context.Context, runID string, trajectory model.Trajectory) error
	GetTrajectory(ctx context.Context, runID string) (model.Trajectory, bool, error)
}
