package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store.Kind)
	require.Equal(t, "raw", cfg.Parse.Filter)
	require.Nil(t, cfg.Compute.Seed)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thunderfit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  kind: sqlite
  path: runs.db
compute:
  workers: 3
  partitions: 12
  seed: 7
parse:
  filter: dff
  keys: xyz
`), 0o644))

	t.Setenv("THUNDERFIT_WORKERS", "5")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Kind)
	require.Equal(t, "runs.db", cfg.Store.Path)
	require.Equal(t, 5, cfg.Compute.Workers)
	require.Equal(t, 12, cfg.Compute.Partitions)
	require.NotNil(t, cfg.Compute.Seed)
	require.Equal(t, int64(7), *cfg.Compute.Seed)
	require.Equal(t, "dff", cfg.Parse.Filter)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("THUNDERFIT_STORE", "postgres")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadNormalizesStoreKind(t *testing.T) {
	t.Setenv("THUNDERFIT_STORE", " SQLite ")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Kind)

	cfg.Store.Kind = "Memory"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "memory", cfg.Store.Kind)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("THUNDERFIT_SEED", "abc")
	_, err := Load("")
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	require.Contains(t, string(data), "kind: memory")
}
