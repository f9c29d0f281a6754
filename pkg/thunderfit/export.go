package thunderfit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Export writes a run and its outputs as indented JSON under
// <OutDir>/<run id>/.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	detail, err := c.Results(ctx, req.RunRef)
	if err != nil {
		return ExportSummary{}, err
	}

	dir := filepath.Join(req.OutDir, detail.Run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, fmt.Errorf("create export dir: %w", err)
	}

	files := []struct {
		name  string
		value any
		keep  bool
	}{
		{name: "run.json", value: detail.Run, keep: true},
		{name: "results.json", value: detail.Results, keep: detail.Results != nil},
		{name: "curves.json", value: detail.Curves, keep: detail.Curves != nil},
		{name: "trajectory.json", value: detail.Trajectory, keep: detail.Trajectory != nil},
	}

	summary := ExportSummary{RunID: detail.Run.ID, Directory: filepath.Clean(dir)}
	for _, f := range files {
		if !f.keep {
			continue
		}
		if err := writeJSON(filepath.Join(dir, f.name), f.value); err != nil {
			return ExportSummary{}, err
		}
		summary.Files = append(summary.Files, f.name)
	}
	c.logger.Info("run exported", "run_id", detail.Run.ID, "dir", summary.Directory)
	return summary, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
