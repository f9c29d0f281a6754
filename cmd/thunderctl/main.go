package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"thunderfit/internal/config"
	"thunderfit/internal/logging"
	"thunderfit/pkg/thunderfit"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thunderctl",
		Short: "Fit regression and tuning models to recorded response traces",
		Long: `thunderctl fits linear, bilinear and tuning models to per-record
response time series, bins tuned records into curves and projects fitted
coefficients onto components. Every fit is stored as a run that can be
listed, shown and exported.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("store", "", "Result store backend: memory or sqlite")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path")
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent partition workers (0 uses GOMAXPROCS)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRegressCmd(),
		newTuneCmd(),
		newCurvesCmd(),
		newTrajectoryCmd(),
		newRunsCmd(),
		newShowCmd(),
		newExportCmd(),
		newDeleteCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thunderctl version %s\n", version)
			return nil
		},
	}
}

// loadConfig merges the config file, environment and any flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("db-path") {
		cfg.Store.Path, _ = flags.GetString("db-path")
	}
	if flags.Changed("workers") {
		cfg.Compute.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openClient(cmd *cobra.Command) (*thunderfit.Client, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	client, err := thunderfit.New(cmd.Context(), thunderfit.Options{
		StoreKind:  cfg.Store.Kind,
		DBPath:     cfg.Store.Path,
		ExportsDir: cfg.ExportDir,
		Workers:    cfg.Compute.Workers,
		Partitions: cfg.Compute.Partitions,
		Seed:       cfg.Compute.Seed,
		Logger:     logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	})
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open client: %w", err)
	}
	return client, cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
