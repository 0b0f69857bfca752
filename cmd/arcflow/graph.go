package main

import (
	"fmt"

	"github.com/aretw0/arcflow/internal/cli"
	"github.com/aretw0/arcflow/internal/presentation/graph"
	"github.com/aretw0/arcflow/pkg/workflow"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [REQUEST_ID]",
	Short: "Print the request state machine as a Mermaid diagram",
	Long: `Prints the transition table as a Mermaid flowchart. With a request ID the
stages it has passed through are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(workflow.Table(), nil))
			return nil
		}
		return withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
			req, err := rt.Engine.GetRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(workflow.Table(), graph.OverlayFor(req)))
			return nil
		})(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
