package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kbukum/extkit/bootstrap"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the points and extensions of the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.newCatalogApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Shutdown(ctx)

			if err := app.Load(ctx); err != nil {
				return err
			}
			summary := bootstrap.SummarizeStore(app.Store)
			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			summary.DisplayPoints(cmd.OutOrStdout())
			return nil
		},
	}
}
