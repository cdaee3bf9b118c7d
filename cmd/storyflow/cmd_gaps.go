package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyflow/internal/gaps"
)

var gapsFlags struct {
	storyID string
	gapID   string
	action  string
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Record and inspect gap lifecycle actions",
}

var gapsLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Append a lifecycle action to a gap",
	RunE:  runGapsLog,
}

var gapsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a gap's action log",
	RunE:  runGapsHistory,
}

// validActions gates the --action flag. The log is append-only, so a
// typo'd action would otherwise be permanent.
var validActions = map[string]bool{
	string(gaps.ActionCreated):      true,
	string(gaps.ActionDeferred):     true,
	string(gaps.ActionAcknowledged): true,
	string(gaps.ActionResolved):     true,
	string(gaps.ActionMerged):       true,
}

func init() {
	for _, c := range []*cobra.Command{gapsLogCmd, gapsHistoryCmd} {
		f := c.Flags()
		f.StringVar(&gapsFlags.storyID, "story", "", "Story ID (required)")
		f.StringVar(&gapsFlags.gapID, "gap", "", "Gap ID (required)")
		_ = c.MarkFlagRequired("story")
		_ = c.MarkFlagRequired("gap")
	}
	gapsLogCmd.Flags().StringVar(&gapsFlags.action, "action", "",
		"Action: created, deferred, acknowledged, resolved, merged (required)")
	_ = gapsLogCmd.MarkFlagRequired("action")

	gapsCmd.AddCommand(gapsLogCmd)
	gapsCmd.AddCommand(gapsHistoryCmd)
}

func runGapsLog(cmd *cobra.Command, _ []string) error {
	if !validActions[gapsFlags.action] {
		return fmt.Errorf("unknown action %q", gapsFlags.action)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a := gaps.Action{Type: gaps.ActionType(gapsFlags.action), Timestamp: time.Now().UTC()}
	if err := st.AppendGapAction(gapsFlags.storyID, gapsFlags.gapID, a); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged %s for %s/%s\n",
		gapsFlags.action, gapsFlags.storyID, gapsFlags.gapID)
	return nil
}

func runGapsHistory(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := st.GapHistory(gapsFlags.storyID, gapsFlags.gapID)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintf(w, "No actions logged for %s/%s\n", gapsFlags.storyID, gapsFlags.gapID)
		return nil
	}
	for _, a := range history {
		fmt.Fprintf(w, "%s  %s\n", a.Timestamp.Format(time.RFC3339), a.Type)
	}
	return nil
}
