package main

import (
	"fmt"

	"github.com/aretw0/arcflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of arcflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "arcflow version %s\n", arcflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
