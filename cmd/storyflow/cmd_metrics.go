package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyflow/internal/metrics"
)

var metricsFlags struct {
	inputPath string
	storyID   string
	format    string
	save      bool
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Run analytics collectors without the workflow",
	Long: "Metrics runs the gap and turn collectors over a standalone input file\n" +
		"(gaps plus events), or re-prints the last archived report for a story.",
	RunE: runMetrics,
}

func init() {
	f := metricsCmd.Flags()
	f.StringVar(&metricsFlags.inputPath, "input", "", "Collector input YAML")
	f.StringVar(&metricsFlags.storyID, "story", "", "Print the archived report for this story")
	f.StringVar(&metricsFlags.format, "format", "text", "Output format: text or yaml")
	f.BoolVar(&metricsFlags.save, "save", false, "Archive the generated report")

	metricsCmd.MarkFlagsOneRequired("input", "story")
	metricsCmd.MarkFlagsMutuallyExclusive("input", "story")
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	var report metrics.Report

	if metricsFlags.storyID != "" {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		report, err = st.LatestReport(metricsFlags.storyID)
		if err != nil {
			return err
		}
	} else {
		var in metrics.Input
		if err := loadYAML(metricsFlags.inputPath, &in); err != nil {
			return err
		}
		report = metrics.Aggregate(cmd.Context(), in, metrics.DefaultCollectors()...)

		if metricsFlags.save {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveReport(report); err != nil {
				return fmt.Errorf("save report: %w", err)
			}
		}
	}

	w := cmd.OutOrStdout()
	if metricsFlags.format == "yaml" {
		data, err := metrics.EncodeYAML(report)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
		return nil
	}
	fmt.Fprint(w, metrics.Format(report))
	return nil
}
