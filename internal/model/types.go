package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Series is one response vector, e.g. the time series of one spatial unit.
type Series struct {
	Key    string    `json:"key"`
	Values []float64 `json:"values"`
}

// Weighted pairs a response vector with an externally computed weight.
type Weighted struct {
	Series
	Weight float64 `json:"weight"`
}

type RegressionResult struct {
	// Coefficients excludes the bias term for the linear and bilinear variants.
	Coefficients []float64 `json:"coefficients"`
	R2           float64   `json:"r2"`
	// P is the shuffle test significance, set only for linear-shuffle fits.
	P *float64 `json:"p,omitempty"`
	// StageOne holds the shifted first stage coefficients of a bilinear fit.
	StageOne []float64 `json:"stage_one,omitempty"`
}

type TuningResult struct {
	// Mu is the preferred stimulus.
	Mu float64 `json:"mu"`
	// Spread is the concentration k for circular fits and the variance sigma
	// for gaussian fits.
	Spread float64 `json:"spread"`
}

// RecordResult is the persisted outcome of one record's fit.
type RecordResult struct {
	Key        string            `json:"key"`
	Regression *RegressionResult `json:"regression,omitempty"`
	Tuning     *TuningResult     `json:"tuning,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// CurveBin aggregates the records whose preferred stimulus lies in (Lo, Hi).
type CurveBin struct {
	Lo       float64   `json:"lo"`
	Hi       float64   `json:"hi"`
	Count    int       `json:"count"`
	Mean     []float64 `json:"mean,omitempty"`
	Variance []float64 `json:"variance,omitempty"`
	// Err marks a bin with too few records for a mean or variance.
	Err  error  `json:"-"`
	Note string `json:"note,omitempty"`
}

type Curves struct {
	Bins []CurveBin `json:"bins"`
	// Excluded counts records whose tuning fit failed.
	Excluded int `json:"excluded"`
}

// Trajectory is a dense matrix of per-sample projections, row major.
type Trajectory struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type RunKind string

const (
	RunRegression RunKind = "regression"
	RunTuning     RunKind = "tuning"
	RunCurves     RunKind = "curves"
	RunTrajectory RunKind = "trajectory"
)

// Run describes one fitting job over a collection.
type Run struct {
	VersionedRecord
	ID           string  `json:"id"`
	Kind         RunKind `json:"kind"`
	Mode         Mode    `json:"mode"`
	ModelBase    string  `json:"model_base"`
	Fingerprint  string  `json:"fingerprint"`
	Records      int     `json:"records"`
	Failures     int     `json:"failures"`
	Seed         int64   `json:"seed,omitempty"`
	CreatedAtUTC string  `json:"created_at_utc"`
}
