// Package loader supplies design matrices and response records to the model
// builder and fitters. Matrices are addressed by a base identifier plus a
// suffix such as "_X" or "_s"; rows are features and columns are samples.
package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Suffixes requested by the model builder.
const (
	SuffixX  = "_X"
	SuffixG  = "_g"
	SuffixY  = "_y"
	SuffixS  = "_s"
	SuffixX1 = "_X1"
	SuffixX2 = "_X2"
)

// ErrNotFound reports a matrix the loader has no data for.
var ErrNotFound = errors.New("matrix not found")

// Loader returns the numeric matrix stored under base+suffix.
type Loader interface {
	Load(ctx context.Context, base, suffix string) (*mat.Dense, error)
}

// MemoryLoader serves matrices registered in memory.
type MemoryLoader struct {
	mu       sync.RWMutex
	matrices map[string]*mat.Dense
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{matrices: make(map[string]*mat.Dense)}
}

// Put stores a copy of m under base+suffix.
func (l *MemoryLoader) Put(base, suffix string, m mat.Matrix) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.matrices[base+suffix] = mat.DenseCopyOf(m)
}

// PutRows stores a matrix given as row slices.
func (l *MemoryLoader) PutRows(base, suffix string, rows [][]float64) error {
	m, err := denseFromRows(rows)
	if err != nil {
		return fmt.Errorf("%s%s: %w", base, suffix, err)
	}
	l.Put(base, suffix, m)
	return nil
}

func (l *MemoryLoader) Load(_ context.Context, base, suffix string) (*mat.Dense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.matrices[base+suffix]
	if !ok {
		return nil, fmt.Errorf("%s%s: %w", base, suffix, ErrNotFound)
	}
	return mat.DenseCopyOf(m), nil
}

// FileLoader reads <base><suffix>.json (an array of rows) or, failing that,
// <base><suffix>.csv (one row per line).
type FileLoader struct{}

func NewFileLoader() FileLoader {
	return FileLoader{}
}

func (FileLoader) Load(ctx context.Context, base, suffix string) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := base + suffix
	if data, err := os.ReadFile(name + ".json"); err == nil {
		var rows [][]float64
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode %s.json: %w", name, err)
		}
		m, err := denseFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%s.json: %w", name, err)
		}
		return m, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	file, err := os.Open(name + ".csv")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	defer file.Close()

	rows, err := readCSVRows(file)
	if err != nil {
		return nil, fmt.Errorf("%s.csv: %w", name, err)
	}
	m, err := denseFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s.csv: %w", name, err)
	}
	return m, nil
}

func readCSVRows(in io.Reader) ([][]float64, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]float64
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := make([]float64, 0, len(record))
		for _, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
			row = append(row, v)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("matrix is empty")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}
