//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"thunderfit/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "thunderfit.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := Stamp(model.Run{ID: "r1", Kind: model.RunRegression, Mode: model.ModeLinear, Records: 2, CreatedAtUTC: "2026-03-01T00:00:00Z"})
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loaded, ok, err := store.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if loaded.Records != 2 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	results := []model.RecordResult{{Key: "a", Regression: &model.RegressionResult{Coefficients: []float64{1}, R2: 1}}}
	if err := store.SaveResults(ctx, "r1", results); err != nil {
		t.Fatalf("save results: %v", err)
	}
	gotResults, ok, err := store.GetResults(ctx, "r1")
	if err != nil || !ok || len(gotResults) != 1 {
		t.Fatalf("get results: ok=%t err=%v results=%+v", ok, err, gotResults)
	}

	curves := model.Curves{Bins: []model.CurveBin{{Lo: 0, Hi: 1, Count: 3}}}
	if err := store.SaveCurves(ctx, "r1", curves); err != nil {
		t.Fatalf("save curves: %v", err)
	}
	if got, ok, err := store.GetCurves(ctx, "r1"); err != nil || !ok || got.Bins[0].Count != 3 {
		t.Fatalf("get curves: ok=%t err=%v curves=%+v", ok, err, got)
	}

	if err := store.SaveTrajectory(ctx, "r1", model.Trajectory{Rows: 1, Cols: 1, Data: []float64{4}}); err != nil {
		t.Fatalf("save trajectory: %v", err)
	}
	if got, ok, err := store.GetTrajectory(ctx, "r1"); err != nil || !ok || got.Data[0] != 4 {
		t.Fatalf("get trajectory: ok=%t err=%v trajectory=%+v", ok, err, got)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: err=%v runs=%+v", err, runs)
	}

	if err := store.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, _ := store.GetResults(ctx, "r1"); ok {
		t.Fatal("expected outputs deleted with run")
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}
