package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyflow/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	dbPath    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "storyflow",
	Short: "Evidence-based story workflow orchestration",
	Long: "Storyflow runs user stories through a deterministic workflow graph,\n" +
		"capturing implementation evidence and gap/turn analytics along the way.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.dbPath, "db", "", "SQLite DB path (default .storyflow/storyflow.db)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evidenceCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
