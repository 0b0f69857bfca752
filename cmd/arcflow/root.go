package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/cli"
	"github.com/aretw0/arcflow/internal/config"
	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arcflow",
	Short: "arcflow tracks HOA architectural review requests",
	Long: `arcflow runs the architectural review (ARC) workflow for homeowner
associations: requests move from submission through review, neighbor
sign-off and board voting to completion, with notifications at every step.

Configuration comes from ARC_* environment variables and .env files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", config.DefaultEnvFiles, "Env files to load, later files winning")
	rootCmd.PersistentFlags().String("actor", "", "Acting user ID (default $ARC_ACTOR_ID)")
	rootCmd.PersistentFlags().String("role", "", "Acting user role (default $ARC_ACTOR_ROLE)")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of text")
}

// openRuntime loads configuration and bootstraps the engine.
func openRuntime(cmd *cobra.Command) (*cli.Runtime, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Level(), cfg.LogFormat == "json")
	return cli.Bootstrap(cmd.Context(), cfg, logger)
}

// actorContext attaches the caller from flags or configuration.
func actorContext(cmd *cobra.Command, rt *cli.Runtime) (context.Context, error) {
	id, _ := cmd.Flags().GetString("actor")
	role, _ := cmd.Flags().GetString("role")
	if id == "" {
		id = rt.Config.ActorID
	}
	if role == "" {
		role = rt.Config.ActorRole
	}
	if id == "" || role == "" {
		return nil, fmt.Errorf("an actor is required: pass --actor and --role or set ARC_ACTOR_ID and ARC_ACTOR_ROLE")
	}
	return arcflow.WithActor(cmd.Context(), domain.Actor{ID: id, Role: role}), nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withRuntime runs fn against a bootstrapped runtime and closes it after.
func withRuntime(fn func(cmd *cobra.Command, args []string, rt *cli.Runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, args, rt)
	}
}
