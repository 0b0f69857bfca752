package main

import (
	"os"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/cli"
	"github.com/aretw0/arcflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the engine behind a JSON API with a server-sent event stream at
/events. Callers identify themselves with the X-Actor-ID and X-Actor-Role
headers. With ARC_TEMPLATES_DIR set, template edits are revalidated live.`,
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		port := rt.Config.HTTPPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if tui.IsInteractive() {
			tui.PrintBanner(os.Stderr)
		}
		rt.Logger.Info("starting arcflow", "version", arcflow.Version, "port", port)

		if w, ok := rt.Loader.(cli.Watcher); ok {
			go func() {
				if err := cli.WatchTemplates(ctx, w, rt.Logger, nil); err != nil {
					rt.Logger.Warn("template watcher stopped", "err", err)
				}
			}()
		}

		if err := rt.Serve(ctx, port); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			rt.Logger.Info("arcflow stopped", "signal", sig.String())
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default $ARC_HTTP_PORT)")
}
