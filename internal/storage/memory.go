package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"thunderfit/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.Run
	results      map[string][]model.RecordResult
	curves       map[string]model.Curves
	trajectories map[string]model.Trajectory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.results = make(map[string][]model.RecordResult)
	s.curves = make(map[string]model.Curves)
	s.trajectories = make(map[string]model.Trajectory)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.results, id)
	delete(s.curves, id)
	delete(s.trajectories, id)
	return nil
}

func (s *MemoryStore) SaveResults(_ context.Context, runID string, results []model.RecordResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	copied := make([]model.RecordResult, len(results))
	copy(copied, results)
	s.results[runID] = copied
	return nil
}

func (s *MemoryStore) GetResults(_ context.Context, runID string) ([]model.RecordResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, ok := s.results[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.RecordResult, len(results))
	copy(copied, results)
	return copied, true, nil
}

func (s *MemoryStore) SaveCurves(_ context.Context, runID string, curves model.Curves) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	bins := make([]model.CurveBin, len(curves.Bins))
	copy(bins, curves.Bins)
	s.curves[runID] = model.Curves{Bins: bins, Excluded: curves.Excluded}
	return nil
}

func (s *MemoryStore) GetCurves(_ context.Context, runID string) (model.Curves, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curves, ok := s.curves[runID]
	if !ok {
		return model.Curves{}, false, nil
	}
	bins := make([]model.CurveBin, len(curves.Bins))
	copy(bins, curves.Bins)
	return model.Curves{Bins: bins, Excluded: curves.Excluded}, true, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, runID string, trajectory model.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	trajectory.Data = append([]float64(nil), trajectory.Data...)
	s.trajectories[runID] = trajectory
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) (model.Trajectory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectory, ok := s.trajectories[runID]
	if !ok {
		return model.Trajectory{}, false, nil
	}
	trajectory.Data = append([]float64(nil), trajectory.Data...)
	return trajectory, true, nil
}

func sortRuns(runs []model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}
