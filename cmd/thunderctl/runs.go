package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thunderfit/internal/model"
	"thunderfit/pkg/thunderfit"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")
			runs, err := client.Runs(cmd.Context(), thunderfit.RunsRequest{Limit: limit, Kind: model.RunKind(kind)})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tKIND\tMODE\tRECORDS\tFAILURES\tCREATED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", run.ID, run.Kind, run.Mode, run.Records, run.Failures, createdAgo(run.CreatedAtUTC))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list")
	cmd.Flags().String("kind", "", "Only list runs of this kind: regression, tuning, curves or trajectory")
	return cmd
}

func createdAgo(stamp string) string {
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return stamp
	}
	return humanize.Time(t)
}

func addRunRefFlags(cmd *cobra.Command) {
	cmd.Flags().String("run-id", "", "Run identifier")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
}

func runRef(cmd *cobra.Command, args []string) (thunderfit.RunRef, error) {
	ref := thunderfit.RunRef{}
	ref.RunID, _ = cmd.Flags().GetString("run-id")
	ref.Latest, _ = cmd.Flags().GetBool("latest")
	if len(args) == 1 {
		if ref.RunID != "" {
			return thunderfit.RunRef{}, errors.New("run id given both as argument and --run-id")
		}
		ref.RunID = args[0]
	}
	return ref, nil
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a run and its stored outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := runRef(cmd, args)
			if err != nil {
				return err
			}
			client, _, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			detail, err := client.Results(cmd.Context(), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, detail)
			}
			run := detail.Run
			fmt.Fprintf(out, "run_id=%s kind=%s mode=%s model=%s fingerprint=%s records=%d failures=%d created=%s\n",
				run.ID, run.Kind, run.Mode, run.ModelBase, run.Fingerprint, run.Records, run.Failures, run.CreatedAtUTC)
			switch {
			case detail.Curves != nil:
				printCurves(cmd, *detail.Curves)
			case detail.Trajectory != nil:
				t := detail.Trajectory
				for i := 0; i < t.Rows; i++ {
					fmt.Fprintf(out, "%v\n", t.Data[i*t.Cols:(i+1)*t.Cols])
				}
			default:
				return printResults(out, detail.Results)
			}
			return nil
		},
	}
	addRunRefFlags(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Write a run and its outputs as JSON files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := runRef(cmd, args)
			if err != nil {
				return err
			}
			client, _, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			outDir, _ := cmd.Flags().GetString("out")
			summary, err := client.Export(cmd.Context(), thunderfit.ExportRequest{RunRef: ref, OutDir: outDir})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "exported run_id=%s dir=%s files=%d\n", summary.RunID, summary.Directory, len(summary.Files))
			return nil
		},
	}
	addRunRefFlags(cmd)
	cmd.Flags().String("out", "", "Export directory (defaults to the configured export_dir)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [run-id]",
		Short: "Delete a run and its stored outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := runRef(cmd, args)
			if err != nil {
				return err
			}
			client, _, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			runID, err := client.Delete(cmd.Context(), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, map[string]string{"deleted": runID})
			}
			fmt.Fprintf(out, "deleted run_id=%s\n", runID)
			return nil
		},
	}
	addRunRefFlags(cmd)
	return cmd
}

// addExportOnRunFlag lets a fitting command write its run to disk as soon as
// it is stored, so the outputs outlive a memory store.
func addExportOnRunFlag(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "Also export the new run as JSON files under this directory")
}

func exportOnRun(cmd *cobra.Command, client *thunderfit.Client, runID string) error {
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		return nil
	}
	summary, err := client.Export(cmd.Context(), thunderfit.ExportRequest{RunRef: thunderfit.RunRef{RunID: runID}, OutDir: outDir})
	if err != nil {
		return fmt.Errorf("export run %s: %w", runID, err)
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s files=%d\n", summary.RunID, summary.Directory, len(summary.Files))
	return nil
}
