package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/ingest"
	"github.com/marlowe/vantage/internal/output"
)

var ingestOpts ingest.Options

var ingestCmd = &cobra.Command{
	Use:     "ingest <file.csv>...",
	Short:   "Ingest CSV files into the local dataset store",
	GroupID: "data",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := storeDir()
		if err != nil {
			return err
		}
		database, err := db.Initialize(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		for _, path := range args {
			report, err := ingest.File(cmd.Context(), database, path, ingestOpts)
			if err != nil {
				output.Error("ingest %s: %v", path, err)
				return err
			}
			output.Success("%s", output.IngestSummary(
				report.Dataset.Name, report.Rows, report.Points, report.Skipped, report.Elapsed))
		}
		return nil
	},
}

// addIngestFlags binds the ingest options onto a flag set.
func addIngestFlags(fs *pflag.FlagSet) {
	fs.StringVar(&ingestOpts.Name, "name", "", "dataset name (default: file name)")
	fs.StringVar(&ingestOpts.TimeColumn, "time-column", "", "timestamp column (default: first that parses)")
	fs.StringVar(&ingestOpts.GroupColumn, "group-column", "", "grouping column (default: first text column)")
}

func init() {
	addIngestFlags(ingestCmd.Flags())
	rootCmd.AddCommand(ingestCmd)
}
