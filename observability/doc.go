// Package observability wires OpenTelemetry tracing and metrics into the
// extension store and the catalog server, and defines the health model
// served on /health.
//
// Both providers export over OTLP/HTTP and share an ExporterConfig:
//
//	cfg := observability.DefaultTracerConfig("extkit")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	mcfg := observability.DefaultMeterConfig("extkit")
//	mp, err := observability.InitMeter(ctx, &mcfg)
//	metrics, err := observability.NewMetrics(mp.Meter("extkit"))
//
// Instantiations are traced with InstantiationSpan and counted with
// Metrics.RecordInstantiation; the extension package's WithTracing and
// WithMetrics middlewares do both.
package observability
