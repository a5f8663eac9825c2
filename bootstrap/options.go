package bootstrap

import (
	"time"

	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/metadata"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	table           *metadata.Table
	instantiator    extension.Instantiator
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the logger is built from
// the config's logging section and installed as the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithTable starts from a table populated in code. The manifest, if any,
// is applied on top of it.
func WithTable(t *metadata.Table) Option {
	return func(o *appOptions) {
		o.table = t
	}
}

// WithInstantiator replaces the default di container. App.Container is nil
// when this option is used.
func WithInstantiator(inst extension.Instantiator) Option {
	return func(o *appOptions) {
		o.instantiator = inst
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}
