// Package cmd wires the vantage CLI: the dashboard TUI plus the ingest,
// dataset, and auth commands around it.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marlowe/vantage/internal/config"
)

var (
	version string
	dataDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "vantage",
	Short: "Terminal data dashboard over ingested CSV datasets",
	Long: `vantage - An interactive terminal dashboard for CSV-ingested datasets.

Ingest CSV files into a local store, then explore them live: summary stats,
time-series charts, and group breakdowns, with optional user-scoped series
from a vantage server.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the dataset store (default: config dir)")

	// Define command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

// storeDir resolves where the dataset store lives: the --data-dir flag,
// then VANTAGE_DATA_DIR, then the config directory.
func storeDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	if dir := os.Getenv("VANTAGE_DATA_DIR"); dir != "" {
		return dir, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return dir, nil
}
