package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyflow/internal/evidence"
)

var evidenceFlags struct {
	storyID string
	history bool
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect and validate evidence bundles",
}

var evidenceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored evidence for a story",
	RunE:  runEvidenceShow,
}

var evidenceValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an evidence bundle YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceValidate,
}

func init() {
	f := evidenceShowCmd.Flags()
	f.StringVar(&evidenceFlags.storyID, "story", "", "Story ID (required)")
	f.BoolVar(&evidenceFlags.history, "history", false, "Print every stored version")
	_ = evidenceShowCmd.MarkFlagRequired("story")

	evidenceCmd.AddCommand(evidenceShowCmd)
	evidenceCmd.AddCommand(evidenceValidateCmd)
}

func runEvidenceShow(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	w := cmd.OutOrStdout()
	if evidenceFlags.history {
		history, err := st.EvidenceHistory(evidenceFlags.storyID)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Fprintf(w, "No evidence stored for %s\n", evidenceFlags.storyID)
			return nil
		}
		for _, b := range history {
			data, err := evidence.EncodeYAML(b)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "---\n%s", data)
		}
		return nil
	}

	b, err := st.LatestEvidence(evidenceFlags.storyID)
	if err != nil {
		return err
	}
	data, err := evidence.EncodeYAML(b)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(data))
	return nil
}

func runEvidenceValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	b, err := evidence.DecodeYAML(data)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "OK: %s version %d, %d ACs\n", b.StoryID, b.Version, len(b.ACs))
	if missing := evidence.MissingACs(b); len(missing) > 0 {
		fmt.Fprintf(w, "ACs not passing: %v\n", missing)
	}
	return nil
}
