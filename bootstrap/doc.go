// Package bootstrap wires an extkit process together: configuration,
// logging, OpenTelemetry providers, the metadata table, the constructor
// container and the extension store.
//
// # Quick Start
//
//	cfg, err := bootstrap.LoadConfig()
//	app, err := bootstrap.New(ctx, cfg)
//	app.Container.MustProvide("acme.stripe", stripe.New)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run loads the manifest into the store, starts the catalog server when
// enabled, blocks until SIGINT/SIGTERM and shuts everything down in
// reverse order. RunTask does the same around a finite task.
package bootstrap
