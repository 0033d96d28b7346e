package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/output"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ds"},
	Short:   "List ingested datasets",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := storeDir()
		if err != nil {
			return err
		}
		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		datasets, err := database.ListDatasets(cmd.Context())
		if err != nil {
			return err
		}
		if len(datasets) == 0 {
			output.Info("No datasets. Run 'vantage ingest <file.csv>' first.")
			return nil
		}
		for _, ds := range datasets {
			fmt.Println(output.DatasetLine(ds))
		}
		return nil
	},
}

var datasetsMetricsCmd = &cobra.Command{
	Use:   "metrics <dataset-id>",
	Short: "List a dataset's metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := storeDir()
		if err != nil {
			return err
		}
		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		ds, err := database.GetDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		metrics, err := database.Metrics(cmd.Context(), ds.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", ds.Name, strings.Join(metrics, ", "))
		return nil
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsMetricsCmd)
	rootCmd.AddCommand(datasetsCmd)
}
