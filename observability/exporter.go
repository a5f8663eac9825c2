package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

const defaultEndpoint = "localhost:4318"

// ExporterConfig is the OTLP/HTTP target and the resource identity shared
// by the tracer and the meter.
type ExporterConfig struct {
	ServiceName    string `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	Environment    string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is host:port of the collector.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

func defaultExporter(serviceName string) ExporterConfig {
	return ExporterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       defaultEndpoint,
		Insecure:       true,
	}
}

// resource merges the service identity into the SDK default resource.
// The attributes are schemaless so the merge never conflicts on schema URL.
func (c ExporterConfig) resource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String(AttrServiceName, c.ServiceName),
			attribute.String(AttrServiceVersion, c.ServiceVersion),
			attribute.String(AttrEnvironment, c.Environment),
		),
	)
}
