package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/extkit/logger"
)

// MeterConfig configures the OTLP meter.
type MeterConfig struct {
	ExporterConfig `yaml:",inline" mapstructure:",squash"`
	// Interval between exports; zero keeps the SDK default.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig targets a local collector every 15 seconds.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{ExporterConfig: defaultExporter(serviceName), Interval: 15 * time.Second}
}

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// The caller owns the provider and must shut it down.
func InitMeter(ctx context.Context, cfg *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("Meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Instrument names.
const (
	MetricInstantiationTotal    = "extension.instantiation.total"
	MetricInstantiationDuration = "extension.instantiation.duration"
	MetricInstantiationErrors   = "extension.instantiation.errors"
	MetricRequestTotal          = "request.total"
	MetricRequestDuration       = "request.duration"
	MetricRequestActive         = "request.active"
)

// Metrics holds the OpenTelemetry instruments for extension instantiation
// and catalog requests.
type Metrics struct {
	instantiationTotal    metric.Int64Counter
	instantiationDuration metric.Float64Histogram
	instantiationErrors   metric.Int64Counter
	requestTotal          metric.Int64Counter
	requestDuration       metric.Float64Histogram
	requestActive         metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	instantiationTotal, err := meter.Int64Counter(MetricInstantiationTotal,
		metric.WithDescription("Total number of extension instantiations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricInstantiationTotal, err)
	}

	instantiationDuration, err := meter.Float64Histogram(MetricInstantiationDuration,
		metric.WithDescription("Duration of extension instantiations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricInstantiationDuration, err)
	}

	instantiationErrors, err := meter.Int64Counter(MetricInstantiationErrors,
		metric.WithDescription("Failed extension instantiations by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricInstantiationErrors, err)
	}

	requestTotal, err := meter.Int64Counter(MetricRequestTotal,
		metric.WithDescription("Total number of catalog requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestTotal, err)
	}

	requestDuration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of catalog requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}

	requestActive, err := meter.Int64UpDownCounter(MetricRequestActive,
		metric.WithDescription("Number of in-flight catalog requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricRequestActive, err)
	}

	return &Metrics{
		instantiationTotal:    instantiationTotal,
		instantiationDuration: instantiationDuration,
		instantiationErrors:   instantiationErrors,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestActive:         requestActive,
	}, nil
}

// RecordInstantiation records one instantiator call.
func (m *Metrics) RecordInstantiation(ctx context.Context, extension, point, status string, duration time.Duration) {
	m.instantiationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("extension", extension),
		attribute.String("point", point),
		attribute.String("status", status),
	))
	m.instantiationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("extension", extension),
		attribute.String("point", point),
	))
}

// RecordInstantiationError counts a failed instantiation by error code.
func (m *Metrics) RecordInstantiationError(ctx context.Context, extension, code string) {
	m.instantiationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("extension", extension),
		attribute.String("code", code),
	))
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, route, method string, status int, duration time.Duration) {
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
	))
}
