package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"thunderfit/internal/model"
)

// Raw records are whitespace separated lines "x y z v1 v2 ...": three
// location columns followed by the time series.
const locationColumns = 3

// linearStride converts (x, y) locations to a single index for KeyLinear.
const linearStride = 1650

// Filter names the per-record normalization applied while parsing.
type Filter string

const (
	FilterRaw Filter = "raw"
	FilterDFF Filter = "dff"
	FilterSub Filter = "sub"
)

// KeyMode selects how a record's key is derived from its location columns.
type KeyMode string

const (
	KeyNone   KeyMode = "none"
	KeyXYZ    KeyMode = "xyz"
	KeyLinear KeyMode = "linear"
)

type ParseOptions struct {
	Filter Filter
	Keys   KeyMode
}

// ParseFilter maps a config string to a Filter.
func ParseFilter(name string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(name))) {
	case "", FilterRaw:
		return FilterRaw, nil
	case FilterDFF:
		return FilterDFF, nil
	case FilterSub:
		return FilterSub, nil
	default:
		return "", fmt.Errorf("unsupported filter: %s", name)
	}
}

// ParseKeyMode maps a config string to a KeyMode.
func ParseKeyMode(name string) (KeyMode, error) {
	switch KeyMode(strings.ToLower(strings.TrimSpace(name))) {
	case "", KeyNone:
		return KeyNone, nil
	case KeyXYZ:
		return KeyXYZ, nil
	case KeyLinear:
		return KeyLinear, nil
	default:
		return "", fmt.Errorf("unsupported key mode: %s", name)
	}
}

// ParseLines reads one series per non-blank line. With KeyNone records are
// keyed by their line position.
func ParseLines(in io.Reader, opts ParseOptions) ([]model.Series, error) {
	if opts.Filter == "" {
		opts.Filter = FilterRaw
	}
	if opts.Keys == "" {
		opts.Keys = KeyNone
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []model.Series
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		series, err := ParseLine(text, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if opts.Keys == KeyNone {
			series.Key = strconv.Itoa(len(out))
		}
		out = append(out, series)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseLine parses a single raw record.
func ParseLine(text string, opts ParseOptions) (model.Series, error) {
	fields := strings.Fields(text)
	if len(fields) <= locationColumns {
		return model.Series{}, fmt.Errorf("expected more than %d columns, got %d", locationColumns, len(fields))
	}
	vec := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return model.Series{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vec[i] = v
	}

	ts := append([]float64(nil), vec[locationColumns:]...)
	switch opts.Filter {
	case "", FilterRaw:
	case FilterDFF:
		m := stat.Mean(ts, nil)
		floats.AddConst(-m, ts)
		floats.Scale(1/(m+0.1), ts)
	case FilterSub:
		floats.AddConst(-stat.Mean(ts, nil), ts)
	default:
		return model.Series{}, fmt.Errorf("unsupported filter: %s", opts.Filter)
	}

	series := model.Series{Values: ts}
	switch opts.Keys {
	case "", KeyNone:
	case KeyXYZ:
		series.Key = fmt.Sprintf("%d,%d,%d", int(vec[0]), int(vec[1]), int(vec[2]))
	case KeyLinear:
		series.Key = strconv.Itoa(int(vec[0]) + int((vec[1]-1)*linearStride))
	default:
		return model.Series{}, fmt.Errorf("unsupported key mode: %s", opts.Keys)
	}
	return series, nil
}
