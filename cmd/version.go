package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version information",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vantage %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
