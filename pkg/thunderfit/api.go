package thunderfit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/builder"
	"thunderfit/internal/curve"
	"thunderfit/internal/dataset"
	"thunderfit/internal/errs"
	"thunderfit/internal/fit"
	"thunderfit/internal/loader"
	"thunderfit/internal/logging"
	"thunderfit/internal/model"
	"thunderfit/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "thunderfit.db"
	defaultRunsLimit  = 20

	// fixed width so stored timestamps sort lexically
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	// Loader resolves model bases. Defaults to loader.FileLoader.
	Loader     loader.Loader
	Workers    int
	Partitions int
	// Seed fixes the shuffle test when non-nil.
	Seed   *int64
	Logger *slog.Logger
}

type Client struct {
	store  storage.Store
	loader loader.Loader
	logger *slog.Logger

	exportsDir string
	dataset    dataset.Options
	seed       *int64
}

// FitRequest names the model inputs and the records to fit.
type FitRequest struct {
	ModelBase string
	Mode      string
	Records   []model.Series
}

type FitSummary struct {
	RunID    string
	Mode     model.Mode
	Records  int
	Failures int
	Results  []model.RecordResult
}

type CurvesRequest struct {
	ModelBase string
	Mode      string
	Records   []model.Series
	// WeightsRunID takes each record's weight from the R2 of a previous
	// regression run, matched by key.
	WeightsRunID string
	// Weights is used when WeightsRunID is empty. Missing keys weigh zero.
	Weights map[string]float64
}

type CurvesSummary struct {
	RunID  string
	Curves model.Curves
}

type TrajectoryRequest struct {
	ModelBase string
	Mode      string
	Records   []model.Series
	// Components holds one component per row, one column per coefficient.
	Components [][]float64
}

type TrajectorySummary struct {
	RunID      string
	Trajectory model.Trajectory
}

type RunsRequest struct {
	Limit int
	Kind  model.RunKind
}

type RunRef struct {
	RunID  string
	Latest bool
}

// RunDetail is a stored run with whichever outputs it produced.
type RunDetail struct {
	Run        model.Run
	Results    []model.RecordResult
	Curves     *model.Curves
	Trajectory *model.Trajectory
}

type ExportRequest struct {
	RunRef
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Files     []string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.KindMemory
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	src := opts.Loader
	if src == nil {
		src = loader.NewFileLoader()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Workers < 0 || opts.Partitions < 0 {
		return nil, errors.New("workers and partitions must be >= 0")
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", storeKind, err)
	}

	return &Client{
		store:      store,
		loader:     src,
		logger:     logger,
		exportsDir: exportsDir,
		dataset:    dataset.Options{Workers: opts.Workers, Partitions: opts.Partitions},
		seed:       opts.Seed,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// FitRegression fits every record against a regression model and stores the
// per-record results. Individual record failures are kept in the results and
// counted; they do not fail the run.
func (c *Client) FitRegression(ctx context.Context, req FitRequest) (FitSummary, error) {
	m, err := c.build(ctx, req.ModelBase, req.Mode)
	if err != nil {
		return FitSummary{}, err
	}
	if !m.Mode().IsRegression() {
		return FitSummary{}, fmt.Errorf("fit regression: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	c.logger.Info("regression fit started", "mode", m.Mode(), "model", req.ModelBase, "records", len(req.Records))
	out, summary, err := fit.RegressCollection(ctx, dataset.New(req.Records, c.dataset), m, c.fitConfig())
	if err != nil {
		return FitSummary{}, err
	}

	results := make([]model.RecordResult, 0, out.Count())
	for _, o := range out.Collect() {
		r := model.RecordResult{Key: o.Key}
		if o.Err != nil {
			r.Error = o.Err.Error()
		} else {
			res := o.Result
			r.Regression = &res
		}
		c.traceRecord(ctx, r)
		results = append(results, r)
	}

	run := c.newRun(model.RunRegression, m, req.ModelBase, summary)
	if err := c.store.SaveRun(ctx, run); err != nil {
		return FitSummary{}, err
	}
	if err := c.store.SaveResults(ctx, run.ID, results); err != nil {
		return FitSummary{}, err
	}
	c.logFinished(run)

	return FitSummary{RunID: run.ID, Mode: run.Mode, Records: run.Records, Failures: run.Failures, Results: results}, nil
}

// FitTuning fits every record against a circular or gaussian tuning model.
func (c *Client) FitTuning(ctx context.Context, req FitRequest) (FitSummary, error) {
	m, err := c.build(ctx, req.ModelBase, req.Mode)
	if err != nil {
		return FitSummary{}, err
	}
	if !m.Mode().IsTuning() {
		return FitSummary{}, fmt.Errorf("fit tuning: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	c.logger.Info("tuning fit started", "mode", m.Mode(), "model", req.ModelBase, "records", len(req.Records))
	out, summary, err := fit.TuneCollection(ctx, dataset.New(req.Records, c.dataset), m)
	if err != nil {
		return FitSummary{}, err
	}

	results := make([]model.RecordResult, 0, out.Count())
	for _, o := range out.Collect() {
		r := model.RecordResult{Key: o.Key}
		if o.Err != nil {
			r.Error = o.Err.Error()
		} else {
			res := o.Result
			r.Tuning = &res
		}
		c.traceRecord(ctx, r)
		results = append(results, r)
	}

	run := c.newRun(model.RunTuning, m, req.ModelBase, summary)
	if err := c.store.SaveRun(ctx, run); err != nil {
		return FitSummary{}, err
	}
	if err := c.store.SaveResults(ctx, run.ID, results); err != nil {
		return FitSummary{}, err
	}
	c.logFinished(run)

	return FitSummary{RunID: run.ID, Mode: run.Mode, Records: run.Records, Failures: run.Failures, Results: results}, nil
}

// Curves bins weighted records by preferred stimulus. Degenerate bins are
// stored and returned with their Note set.
func (c *Client) Curves(ctx context.Context, req CurvesRequest) (CurvesSummary, error) {
	m, err := c.build(ctx, req.ModelBase, req.Mode)
	if err != nil {
		return CurvesSummary{}, err
	}
	tm, ok := m.(model.TuningModel)
	if !ok {
		return CurvesSummary{}, fmt.Errorf("curves: %w: %s", errs.ErrUnrecognizedMode, m.Mode())
	}

	weights := req.Weights
	if req.WeightsRunID != "" {
		weights, err = c.regressionWeights(ctx, req.WeightsRunID)
		if err != nil {
			return CurvesSummary{}, err
		}
	}
	weighted := make([]model.Weighted, len(req.Records))
	for i, s := range req.Records {
		weighted[i] = model.Weighted{Series: s, Weight: weights[s.Key]}
	}

	curves, err := curve.Aggregate(ctx, dataset.New(weighted, c.dataset), tm)
	if err != nil {
		return CurvesSummary{}, err
	}
	for _, bin := range curves.Bins {
		if bin.Err != nil {
			c.logger.Warn("degenerate curve bin", "lo", bin.Lo, "hi", bin.Hi, "count", bin.Count)
		}
	}

	run := c.newRun(model.RunCurves, m, req.ModelBase, fit.Summary{Records: len(weighted), Failures: curves.Excluded})
	if err := c.store.SaveRun(ctx, run); err != nil {
		return CurvesSummary{}, err
	}
	if err := c.store.SaveCurves(ctx, run.ID, curves); err != nil {
		return CurvesSummary{}, err
	}
	c.logFinished(run)

	return CurvesSummary{RunID: run.ID, Curves: curves}, nil
}

// Trajectory averages outer(y, projected coefficients) over all records. Any
// record failure fails the call and nothing is stored.
func (c *Client) Trajectory(ctx context.Context, req TrajectoryRequest) (TrajectorySummary, error) {
	comps, err := componentsMatrix(req.Components)
	if err != nil {
		return TrajectorySummary{}, err
	}
	m, err := c.build(ctx, req.ModelBase, req.Mode)
	if err != nil {
		return TrajectorySummary{}, err
	}

	coll := dataset.New(req.Records, c.dataset)
	if coll.Count() == 0 {
		return TrajectorySummary{}, fmt.Errorf("trajectory: %w", errs.ErrEmptyCollection)
	}
	sum, err := fit.Trajectory(ctx, coll, m, comps, c.fitConfig())
	if err != nil {
		return TrajectorySummary{}, err
	}

	rows, cols := sum.Dims()
	trajectory := model.Trajectory{Rows: rows, Cols: cols, Data: make([]float64, 0, rows*cols)}
	for i := 0; i < rows; i++ {
		trajectory.Data = append(trajectory.Data, sum.RawRowView(i)...)
	}

	run := c.newRun(model.RunTrajectory, m, req.ModelBase, fit.Summary{Records: coll.Count()})
	if err := c.store.SaveRun(ctx, run); err != nil {
		return TrajectorySummary{}, err
	}
	if err := c.store.SaveTrajectory(ctx, run.ID, trajectory); err != nil {
		return TrajectorySummary{}, err
	}
	c.logFinished(run)

	return TrajectorySummary{RunID: run.ID, Trajectory: trajectory}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.Run, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Run, 0, min(len(runs), req.Limit))
	for _, run := range runs {
		if req.Kind != "" && run.Kind != req.Kind {
			continue
		}
		out = append(out, run)
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// Results loads a run and its stored outputs.
func (c *Client) Results(ctx context.Context, ref RunRef) (RunDetail, error) {
	runID, err := c.resolveRun(ctx, ref)
	if err != nil {
		return RunDetail{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}

	detail := RunDetail{Run: run}
	switch run.Kind {
	case model.RunRegression, model.RunTuning:
		results, _, err := c.store.GetResults(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		detail.Results = results
	case model.RunCurves:
		curves, ok, err := c.store.GetCurves(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		if ok {
			detail.Curves = &curves
		}
	case model.RunTrajectory:
		trajectory, ok, err := c.store.GetTrajectory(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		if ok {
			detail.Trajectory = &trajectory
		}
	}
	return detail, nil
}

func (c *Client) build(ctx context.Context, base, mode string) (model.Model, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: model base is required", errs.ErrModelConstruction)
	}
	m, err := builder.Build(ctx, c.loader, base, mode)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("model built", "mode", m.Mode(), "model", base, "samples", m.Samples())
	return m, nil
}

func (c *Client) fitConfig() fit.Config {
	if c.seed == nil {
		return fit.Config{}
	}
	return fit.Config{Seed: *c.seed, Seeded: true}
}

func (c *Client) newRun(kind model.RunKind, m model.Model, base string, summary fit.Summary) model.Run {
	run := model.Run{
		ID:           uuid.NewString(),
		Kind:         kind,
		Mode:         m.Mode(),
		ModelBase:    base,
		Fingerprint:  model.Fingerprint(m),
		Records:      summary.Records,
		Failures:     summary.Failures,
		CreatedAtUTC: time.Now().UTC().Format(createdAtLayout),
	}
	if c.seed != nil {
		run.Seed = *c.seed
	}
	return storage.Stamp(run)
}

func (c *Client) logFinished(run model.Run) {
	if run.Failures > 0 {
		c.logger.Warn("run finished with failures", "run_id", run.ID, "kind", run.Kind, "records", run.Records, "failures", run.Failures)
		return
	}
	c.logger.Info("run finished", "run_id", run.ID, "kind", run.Kind, "records", run.Records)
}

// Delete removes a run and its stored outputs. It returns the deleted run id.
func (c *Client) Delete(ctx context.Context, ref RunRef) (string, error) {
	runID, err := c.resolveRun(ctx, ref)
	if err != nil {
		return "", err
	}
	_, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("run not found: %s", runID)
	}
	if err := c.store.DeleteRun(ctx, runID); err != nil {
		return "", fmt.Errorf("delete run %s: %w", runID, err)
	}
	c.logger.Info("run deleted", "run_id", runID)
	return runID, nil
}

func (c *Client) traceRecord(ctx context.Context, r model.RecordResult) {
	switch {
	case r.Error != "":
		c.logger.Log(ctx, logging.LevelTrace, "record fit failed", "key", r.Key, "error", r.Error)
	case r.Regression != nil:
		c.logger.Log(ctx, logging.LevelTrace, "record fitted", "key", r.Key, "r2", r.Regression.R2)
	case r.Tuning != nil:
		c.logger.Log(ctx, logging.LevelTrace, "record fitted", "key", r.Key, "mu", r.Tuning.Mu, "spread", r.Tuning.Spread)
	}
}

func (c *Client) resolveRun(ctx context.Context, ref RunRef) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if ref.RunID == "" && !ref.Latest {
		return "", errors.New("run id or latest is required")
	}
	if ref.RunID != "" {
		return ref.RunID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func (c *Client) regressionWeights(ctx context.Context, runID string) (map[string]float64, error) {
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("weights run not found: %s", runID)
	}
	if run.Kind != model.RunRegression {
		return nil, fmt.Errorf("weights run %s is a %s run, want regression", runID, run.Kind)
	}
	results, _, err := c.store.GetResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Regression != nil {
			weights[r.Key] = r.Regression.R2
		}
	}
	return weights, nil
}

func componentsMatrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: components are empty", errs.ErrShapeMismatch)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: component %d has %d columns, want %d", errs.ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}
