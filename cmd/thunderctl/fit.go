package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"thunderfit/internal/config"
	"thunderfit/internal/loader"
	"thunderfit/internal/model"
	"thunderfit/pkg/thunderfit"
)

func addFitFlags(cmd *cobra.Command, defaultMode string) {
	cmd.Flags().String("model", "", "Model base path; inputs are read from <model>_X.json, <model>_g.json, ...")
	cmd.Flags().String("mode", defaultMode, "Model mode")
	cmd.Flags().String("data", "", "Raw record file, one \"x y z v1 v2 ...\" line per record")
	cmd.Flags().String("filter", "", "Record filter: raw, dff or sub (overrides config)")
	cmd.Flags().String("keys", "", "Record keys: none, xyz or linear (overrides config)")
	addExportOnRunFlag(cmd)
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("data")
}

func newRegressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regress",
		Short: "Fit a regression model to every record",
		Long: `Fits mean, linear, linear-shuffle or bilinear models. Records that
cannot be fitted are reported with their error and counted as failures.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			req, err := fitRequest(cmd, cfg)
			if err != nil {
				return err
			}
			summary, err := client.FitRegression(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printFitSummary(cmd, summary); err != nil {
				return err
			}
			return exportOnRun(cmd, client, summary.RunID)
		},
	}
	addFitFlags(cmd, string(model.ModeLinear))
	return cmd
}

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Fit a circular or gaussian tuning model to every record",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			req, err := fitRequest(cmd, cfg)
			if err != nil {
				return err
			}
			summary, err := client.FitTuning(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printFitSummary(cmd, summary); err != nil {
				return err
			}
			return exportOnRun(cmd, client, summary.RunID)
		},
	}
	addFitFlags(cmd, string(model.ModeGaussian))
	return cmd
}

func fitRequest(cmd *cobra.Command, cfg config.Config) (thunderfit.FitRequest, error) {
	base, _ := cmd.Flags().GetString("model")
	mode, _ := cmd.Flags().GetString("mode")
	records, err := readRecords(cmd, cfg)
	if err != nil {
		return thunderfit.FitRequest{}, err
	}
	return thunderfit.FitRequest{ModelBase: base, Mode: mode, Records: records}, nil
}

func readRecords(cmd *cobra.Command, cfg config.Config) ([]model.Series, error) {
	path, _ := cmd.Flags().GetString("data")
	filterName := cfg.Parse.Filter
	if v, _ := cmd.Flags().GetString("filter"); v != "" {
		filterName = v
	}
	keysName := cfg.Parse.Keys
	if v, _ := cmd.Flags().GetString("keys"); v != "" {
		keysName = v
	}

	filter, err := loader.ParseFilter(filterName)
	if err != nil {
		return nil, err
	}
	keys, err := loader.ParseKeyMode(keysName)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer in.Close()
	return loader.ParseLines(in, loader.ParseOptions{Filter: filter, Keys: keys})
}

func printFitSummary(cmd *cobra.Command, summary thunderfit.FitSummary) error {
	out := cmd.OutOrStdout()
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(out, summary)
	}
	fmt.Fprintf(out, "run_id=%s mode=%s records=%d failures=%d\n", summary.RunID, summary.Mode, summary.Records, summary.Failures)
	return printResults(out, summary.Results)
}

func printResults(out io.Writer, results []model.RecordResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(tw, "%s\terror\t%s\n", r.Key, r.Error)
		case r.Regression != nil:
			p := "-"
			if r.Regression.P != nil {
				p = fmt.Sprintf("%.4f", *r.Regression.P)
			}
			fmt.Fprintf(tw, "%s\tr2=%.6f\tp=%s\tb=%v\n", r.Key, r.Regression.R2, p, r.Regression.Coefficients)
		case r.Tuning != nil:
			fmt.Fprintf(tw, "%s\tmu=%.6f\tspread=%.6f\n", r.Key, r.Tuning.Mu, r.Tuning.Spread)
		}
	}
	return tw.Flush()
}
