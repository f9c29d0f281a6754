//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"thunderfit/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Run{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs ORDER BY created_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM runs WHERE id = ?`,
		`DELETE FROM run_outputs WHERE run_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []model.RecordResult) error {
	payload, err := EncodeResults(results)
	if err != nil {
		return err
	}
	return s.saveOutput(ctx, runID, outputResults, payload)
}

func (s *SQLiteStore) GetResults(ctx context.Context, runID string) ([]model.RecordResult, bool, error) {
	payload, ok, err := s.getOutput(ctx, runID, outputResults)
	if err != nil || !ok {
		return nil, ok, err
	}
	results, err := DecodeResults(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode results %s: %w", runID, err)
	}
	return results, true, nil
}

func (s *SQLiteStore) SaveCurves(ctx context.Context, runID string, curves model.Curves) error {
	payload, err := EncodeCurves(curves)
	if err != nil {
		return err
	}
	return s.saveOutput(ctx, runID, outputCurves, payload)
}

func (s *SQLiteStore) GetCurves(ctx context.Context, runID string) (model.Curves, bool, error) {
	payload, ok, err := s.getOutput(ctx, runID, outputCurves)
	if err != nil || !ok {
		return model.Curves{}, ok, err
	}
	curves, err := DecodeCurves(payload)
	if err != nil {
		return model.Curves{}, false, fmt.Errorf("decode curves %s: %w", runID, err)
	}
	return curves, true, nil
}

func (s *SQLiteStore) SaveTrajectory(ctx context.Context, runID string, trajectory model.Trajectory) error {
	payload, err := EncodeTrajectory(trajectory)
	if err != nil {
		return err
	}
	return s.saveOutput(ctx, runID, outputTrajectory, payload)
}

func (s *SQLiteStore) GetTrajectory(ctx context.Context, runID string) (model.Trajectory, bool, error) {
	payload, ok, err := s.getOutput(ctx, runID, outputTrajectory)
	if err != nil || !ok {
		return model.Trajectory{}, ok, err
	}
	trajectory, err := DecodeTrajectory(payload)
	if err != nil {
		return model.Trajectory{}, false, fmt.Errorf("decode trajectory %s: %w", runID, err)
	}
	return trajectory, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const (
	outputResults    = "results"
	outputCurves     = "curves"
	outputTrajectory = "trajectory"
)

func (s *SQLiteStore) saveOutput(ctx context.Context, runID, kind string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO run_outputs (run_id, kind, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET
			payload = excluded.payload
	`, runID, kind, payload)
	return err
}

func (s *SQLiteStore) getOutput(ctx context.Context, runID, kind string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM run_outputs WHERE run_id = ? AND kind = ?`, runID, kind).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_outputs (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, kind)
		);
	`)
	return err
}
