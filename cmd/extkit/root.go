package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kbukum/extkit/bootstrap"
	"github.com/kbukum/extkit/config"
	"github.com/kbukum/extkit/extension"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigFile string
	Manifest   string
	Format     string
	Verbose    bool
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "extkit",
		Short:         "Extension point registry toolkit",
		Long:          "extkit loads extension manifests into a registry, checks them, and serves the catalog over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default: ./extkit.yml)")
	cmd.PersistentFlags().StringVarP(&opts.Manifest, "manifest", "m", "", "extension manifest, overrides the config")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))
	return cmd
}

// loadConfig resolves the configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*bootstrap.Config, error) {
	var loaderOpts []config.LoaderOption
	if o.ConfigFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.ConfigFile))
	}
	cfg, err := bootstrap.LoadConfig(loaderOpts...)
	if err != nil {
		return nil, err
	}
	if o.Manifest != "" {
		cfg.Manifest = o.Manifest
	}
	if cfg.Manifest == "" {
		return nil, fmt.Errorf("no manifest configured: pass --manifest or set manifest in the config")
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newCatalogApp builds an App whose extensions are stand-ins, so a
// manifest can be loaded without the constructors of its implementations.
func (o *rootOptions) newCatalogApp(ctx context.Context, quiet bool) (*bootstrap.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if quiet && !o.Verbose {
		cfg.Logging.Level = "warn"
	}
	return o.newAppFromConfig(ctx, cfg)
}

func (o *rootOptions) newAppFromConfig(ctx context.Context, cfg *bootstrap.Config) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, bootstrap.WithInstantiator(stubInstantiator()))
}

// stub stands in for an implementation in catalog-only processes.
type stub struct {
	Key    string
	Params map[string]any
}

func stubInstantiator() extension.Instantiator {
	return extension.InstantiatorFunc(func(_ context.Context, key string, params map[string]any) (any, error) {
		return &stub{Key: key, Params: params}, nil
	})
}
