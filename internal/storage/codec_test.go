package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"thunderfit/internal/model"
)

func TestRunCodecVersionCheck(t *testing.T) {
	data, err := EncodeRun(Stamp(model.Run{ID: "r1", Mode: model.ModeBilinear}))
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "r1" || run.Mode != model.ModeBilinear {
		t.Fatalf("unexpected run: %+v", run)
	}

	stale, err := EncodeRun(model.Run{ID: "old"})
	if err != nil {
		t.Fatalf("encode stale run: %v", err)
	}
	if _, err := DecodeRun(stale); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestResultsCodecCompresses(t *testing.T) {
	p := 0.5
	results := make([]model.RecordResult, 200)
	for i := range results {
		results[i] = model.RecordResult{
			Key:        "unit",
			Regression: &model.RegressionResult{Coefficients: []float64{1, 2, 3}, R2: 0.25, P: &p},
		}
	}

	data, err := EncodeResults(results)
	if err != nil {
		t.Fatalf("encode results: %v", err)
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		t.Fatal("expected zstd framed payload")
	}
	plain, _ := json.Marshal(results)
	if len(data) >= len(plain) {
		t.Fatalf("expected compression, got %d >= %d bytes", len(data), len(plain))
	}

	decoded, err := DecodeResults(data)
	if err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(decoded) != 200 || *decoded[199].Regression.P != 0.5 {
		t.Fatalf("unexpected decoded results: %+v", decoded[199])
	}
}

func TestDecodeAcceptsPlainJSON(t *testing.T) {
	curves, err := DecodeCurves([]byte(`{"bins":[{"lo":0,"hi":3,"count":4}],"excluded":2}`))
	if err != nil {
		t.Fatalf("decode curves: %v", err)
	}
	if curves.Excluded != 2 || curves.Bins[0].Count != 4 {
		t.Fatalf("unexpected curves: %+v", curves)
	}
}

func TestTrajectoryCodecValidatesShape(t *testing.T) {
	data, err := EncodeTrajectory(model.Trajectory{Rows: 2, Cols: 2, Data: []float64{1, 2, 3}})
	if err != nil {
		t.Fatalf("encode trajectory: %v", err)
	}
	if _, err := DecodeTrajectory(data); err == nil {
		t.Fatal("expected shape error")
	}
}
