package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"thunderfit/internal/loader"
	"thunderfit/internal/model"
	"thunderfit/pkg/thunderfit"
)

func newCurvesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curves",
		Short: "Bin records by preferred stimulus and report mean and variance per bin",
		Long: `Fits a tuning model to every record and averages the records whose
weight exceeds the threshold within each stimulus bin. Weights are the R2
values of a regression run, matched by record key: either a stored run
(--weights-run) or one fitted here first (--weights-model).`,
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
			weightsRun, err := curveWeightsRun(cmd, client, req)
			if err != nil {
				return err
			}
			summary, err := client.Curves(cmd.Context(), thunderfit.CurvesRequest{
				ModelBase:    req.ModelBase,
				Mode:         req.Mode,
				Records:      req.Records,
				WeightsRunID: weightsRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if err := writeJSON(out, summary); err != nil {
					return err
				}
				return exportOnRun(cmd, client, summary.RunID)
			}
			fmt.Fprintf(out, "run_id=%s excluded=%d\n", summary.RunID, summary.Curves.Excluded)
			printCurves(cmd, summary.Curves)
			return exportOnRun(cmd, client, summary.RunID)
		},
	}
	addFitFlags(cmd, string(model.ModeGaussian))
	cmd.Flags().String("weights-run", "", "Stored regression run whose R2 values weight the records")
	cmd.Flags().String("weights-model", "", "Regression model base fitted first to weight the records")
	cmd.Flags().String("weights-mode", string(model.ModeLinear), "Mode of --weights-model")
	cmd.MarkFlagsMutuallyExclusive("weights-run", "weights-model")
	cmd.MarkFlagsOneRequired("weights-run", "weights-model")
	return cmd
}

func curveWeightsRun(cmd *cobra.Command, client *thunderfit.Client, req thunderfit.FitRequest) (string, error) {
	if runID, _ := cmd.Flags().GetString("weights-run"); runID != "" {
		return runID, nil
	}
	base, _ := cmd.Flags().GetString("weights-model")
	mode, _ := cmd.Flags().GetString("weights-mode")
	summary, err := client.FitRegression(cmd.Context(), thunderfit.FitRequest{ModelBase: base, Mode: mode, Records: req.Records})
	if err != nil {
		return "", fmt.Errorf("weights regression: %w", err)
	}
	return summary.RunID, nil
}

func printCurves(cmd *cobra.Command, curves model.Curves) {
	out := cmd.OutOrStdout()
	for i, bin := range curves.Bins {
		if bin.Note != "" {
			fmt.Fprintf(out, "bin %d (%g, %g) n=%d: %s\n", i, bin.Lo, bin.Hi, bin.Count, bin.Note)
			continue
		}
		fmt.Fprintf(out, "bin %d (%g, %g) n=%d mean=%v variance=%v\n", i, bin.Lo, bin.Hi, bin.Count, bin.Mean, bin.Variance)
	}
}

func newTrajectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trajectory",
		Short: "Average response outer products with projected coefficients",
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
			compsBase, _ := cmd.Flags().GetString("components")
			comps, err := loader.NewFileLoader().Load(cmd.Context(), compsBase, "")
			if err != nil {
				return fmt.Errorf("load components: %w", err)
			}

			summary, err := client.Trajectory(cmd.Context(), thunderfit.TrajectoryRequest{
				ModelBase:  req.ModelBase,
				Mode:       req.Mode,
				Records:    req.Records,
				Components: denseRows(comps),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if err := writeJSON(out, summary); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "run_id=%s rows=%d cols=%d\n", summary.RunID, summary.Trajectory.Rows, summary.Trajectory.Cols)
			}
			return exportOnRun(cmd, client, summary.RunID)
		},
	}
	addFitFlags(cmd, string(model.ModeLinear))
	cmd.Flags().String("components", "", "Component matrix base path, read from <path>.json or <path>.csv")
	_ = cmd.MarkFlagRequired("components")
	return cmd
}

func denseRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
