package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyflow/internal/evidence"
	"storyflow/internal/logging"
	"storyflow/internal/metrics"
	"storyflow/internal/pipeline"
	"storyflow/pkg/flow"
)

var runFlags struct {
	inputPath  string
	resultPath string
	format     string
	dryRun     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a story through the workflow graph",
	Long: "Run loads the story input (gaps, events, baseline, context) and the\n" +
		"implementer's filed result, walks the workflow graph, persists the\n" +
		"evidence bundle and metrics report, and prints the report.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.inputPath, "input", "", "Story input YAML (required)")
	f.StringVar(&runFlags.resultPath, "result", "", "Implementer result YAML")
	f.StringVar(&runFlags.format, "format", "text", "Output format: text or yaml")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Skip persistence")

	_ = runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, _ []string) error {
	log := logging.New("run")

	var in pipeline.Input
	if err := loadYAML(runFlags.inputPath, &in); err != nil {
		return err
	}

	var result pipeline.ImplementResult
	if runFlags.resultPath != "" {
		if err := loadYAML(runFlags.resultPath, &result); err != nil {
			return err
		}
	}

	p, err := pipeline.Build(
		pipeline.Deps{Implementer: pipeline.StaticImplementer{Result: result}},
		flow.WithObserver(&flow.LogObserver{Logger: logging.New("walk")}),
	)
	if err != nil {
		return fmt.Errorf("build workflow: %w", err)
	}

	out, err := p.Run(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("run story %s: %w", in.StoryID, err)
	}
	for _, msg := range out.Errors {
		log.Warn("degraded step", "error", msg)
	}

	if !runFlags.dryRun {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveEvidence(out.Evidence); err != nil {
			return fmt.Errorf("save evidence: %w", err)
		}
		if err := st.SaveReport(out.Report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		log.Info("persisted run", "story", in.StoryID, "evidence_version", out.Evidence.Version)
	}

	w := cmd.OutOrStdout()
	switch runFlags.format {
	case "yaml":
		data, err := metrics.EncodeYAML(out.Report)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
	default:
		fmt.Fprint(w, metrics.Format(out.Report))
		if missing := evidence.MissingACs(out.Evidence); len(missing) > 0 {
			fmt.Fprintf(w, "\nACs not passing: %v\n", missing)
		}
	}
	return nil
}
