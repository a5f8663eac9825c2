package bootstrap

import (
	"fmt"
	"time"

	"github.com/kbukum/extkit/config"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/observability"
	"github.com/kbukum/extkit/server"
	"github.com/kbukum/extkit/version"
)

// ServiceName is the name used for config lookup and env prefixes.
const ServiceName = "extkit"

// TracingConfig enables and configures the OTLP tracer.
type TracingConfig struct {
	Enabled                    bool `yaml:"enabled" mapstructure:"enabled"`
	observability.TracerConfig `yaml:",inline" mapstructure:",squash"`
}

// MetricsConfig enables and configures the OTLP meter.
type MetricsConfig struct {
	Enabled                   bool `yaml:"enabled" mapstructure:"enabled"`
	observability.MeterConfig `yaml:",inline" mapstructure:",squash"`
}

// Config is the full process configuration.
//
//	name: payments
//	manifest: ./extensions.yml
//	logging: {level: debug}
//	server: {enabled: true, port: 8080}
type Config struct {
	config.BaseConfig `yaml:",inline" mapstructure:",squash"`

	// Manifest is the path of the extension manifest. Empty means the
	// table is populated in code.
	Manifest string        `yaml:"manifest" mapstructure:"manifest"`
	Logging  logger.Config `yaml:"logging" mapstructure:"logging"`
	Tracing  TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Server   server.Config `yaml:"server" mapstructure:"server"`
}

// LoadConfig loads, defaults and validates the configuration.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadConfig(ServiceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults applies default values to every section.
func (c *Config) ApplyDefaults() {
	c.BaseConfig.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()

	ver := version.Get().Version
	tracer := observability.DefaultTracerConfig(c.Name)
	setDefault(&c.Tracing.ServiceName, c.Name)
	setDefault(&c.Tracing.ServiceVersion, ver)
	setDefault(&c.Tracing.Environment, c.Environment)
	setDefault(&c.Tracing.Endpoint, tracer.Endpoint)
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = tracer.SampleRate
	}

	meter := observability.DefaultMeterConfig(c.Name)
	setDefault(&c.Metrics.ServiceName, c.Name)
	setDefault(&c.Metrics.ServiceVersion, ver)
	setDefault(&c.Metrics.Environment, c.Environment)
	setDefault(&c.Metrics.Endpoint, meter.Endpoint)
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = meter.Interval
	}
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1 (got: %g)", c.Tracing.SampleRate)
	}
	if c.Metrics.Interval < time.Second && c.Metrics.Enabled {
		return fmt.Errorf("metrics.interval must be at least 1s (got: %s)", c.Metrics.Interval)
	}
	return nil
}
