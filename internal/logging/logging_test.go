package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelTrace, ParseLevel("TRACE"))
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewLoggerFiltersAndLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown", "records", 3)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "records=3")

	buf.Reset()
	logger = NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "record fitted")
	require.Contains(t, buf.String(), "level=TRACE")
}
