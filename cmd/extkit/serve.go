package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the manifest's catalog over HTTP",
		Long: `Load the manifest and serve a read-only JSON catalog until interrupted.

Routes: /health, /points, /points/:key, /extensions, /extensions/:key and
the /events stream of instantiated extensions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Server.Enabled = true
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			app, err := opts.newAppFromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port, overrides the config")
	return cmd
}
