package main

import (
	"fmt"

	"github.com/aretw0/arcflow/internal/validator"
	"github.com/aretw0/arcflow/pkg/adapters/loam"
	"github.com/aretw0/arcflow/pkg/progress"
	"github.com/aretw0/arcflow/pkg/workflow"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Work with workflow policy files",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a workflow policy file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := workflow.LoadPolicy(args[0])
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Policy is valid! ✅ (sign-off mode %s, estimates %s)\n", p.Signoff.Mode, p.EstimateMode)
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Work with workflow template documents",
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate DIR",
	Short: "Check every template document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := loam.Open(args[0], progress.DefaultTemplate())
		if err != nil {
			return err
		}
		if err := validator.ValidateLoader(cmd.Context(), loader); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		classes, err := loader.Classifications(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Templates are valid! ✅ (%d classifications)\n", len(classes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd, templatesCmd)
	policyCmd.AddCommand(policyValidateCmd)
	templatesCmd.AddCommand(templatesValidateCmd)
}
