package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/extkit/di"
	"github.com/kbukum/extkit/event"
	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/metadata"
	"github.com/kbukum/extkit/observability"
	"github.com/kbukum/extkit/server"
	"github.com/kbukum/extkit/sse"
)

// App is a configured extension store with its supporting infrastructure.
type App struct {
	Cfg    *Config
	Logger *logger.Logger
	Table  *metadata.Table
	// Container is the default instantiator. It is nil when WithInstantiator
	// was used.
	Container *di.Container
	Events    *event.Dispatcher
	Store     *extension.Store
	Metrics   *observability.Metrics
	Server    *server.Server
	// Hub streams instantiated events on /events while the server runs.
	Hub *sse.Hub

	manifest        *metadata.Manifest
	tracerProvider  *sdktrace.TracerProvider
	meterProvider   *sdkmetric.MeterProvider
	gracefulTimeout time.Duration
	loaded          bool
	loadErr         error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// New builds an App from cfg. Defaults are applied and the config is
// validated; the manifest is read and applied to the table but nothing is
// registered until Load.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Cfg:             cfg,
		Events:          event.NewDispatcher(),
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		app.Logger = logger.New(&cfg.Logging, cfg.Name)
		logger.SetGlobalLogger(app.Logger)
	}

	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}

	app.Table = o.table
	if app.Table == nil {
		app.Table = metadata.NewTable()
	}
	if cfg.Manifest != "" {
		m, err := metadata.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, fmt.Errorf("loading manifest: %w", err)
		}
		if err := m.Apply(app.Table); err != nil {
			return nil, fmt.Errorf("applying manifest %s: %w", cfg.Manifest, err)
		}
		app.manifest = m
	}

	inst := o.instantiator
	if inst == nil {
		app.Container = di.NewContainer()
		inst = app.Container
	}

	app.Store = extension.New(app.Table, extension.Chain(app.middleware()...)(inst),
		extension.WithLogger(app.Logger.WithComponent("extension")),
		extension.WithNotifier(app.Events),
	)
	return app, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.Cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &a.Cfg.Tracing.TracerConfig)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		a.tracerProvider = tp
	}
	if a.Cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &a.Cfg.Metrics.MeterConfig)
		if err != nil {
			return fmt.Errorf("initializing meter: %w", err)
		}
		a.meterProvider = mp
		metrics, err := observability.NewMetrics(mp.Meter(ServiceName))
		if err != nil {
			return err
		}
		a.Metrics = metrics
	}
	return nil
}

func (a *App) middleware() []extension.Middleware {
	mws := []extension.Middleware{extension.WithLogging(a.Logger.WithComponent("instantiator"))}
	if a.tracerProvider != nil {
		mws = append(mws, extension.WithTracing(a.Cfg.Name))
	}
	if a.Metrics != nil {
		mws = append(mws, extension.WithMetrics(a.Metrics))
	}
	return mws
}

// Load registers the manifest's points and extensions with the store.
// Preloaded extensions are constructed here, so constructors must be
// provided before Load. Load runs once: later calls return the first
// result. A failed Load leaves a partial catalog, so the App is unusable.
func (a *App) Load(ctx context.Context) error {
	if a.loaded {
		return a.loadErr
	}
	a.loaded = true
	if a.manifest == nil {
		return nil
	}
	if err := a.manifest.Plan().Register(ctx, a.Store); err != nil {
		a.loadErr = fmt.Errorf("loading extensions: %w", err)
		return a.loadErr
	}
	a.Logger.Info("Extensions loaded", logger.Fields(
		"points", a.Store.Types().Len(),
		"extensions", a.Store.Registry().Len(),
	))
	return nil
}

// Run executes the full lifecycle for a long-running process: Load,
// OnStart hooks, catalog server, OnReady hooks, block on signal, Shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}
	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.Shutdown(context.WithoutCancel(ctx))
}

// RunTask runs task with the same startup and shutdown as Run. The task
// context is canceled on SIGINT/SIGTERM.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}

	taskCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	taskErr := task(taskCtx)
	stop()

	if err := a.Shutdown(context.WithoutCancel(ctx)); err != nil && taskErr == nil {
		return err
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Cfg.Name, "environment", a.Cfg.Environment))

	if err := a.Load(ctx); err != nil {
		return err
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if a.Cfg.Server.Enabled {
		a.Server = server.New(a.Cfg.Server, a.Logger)
		a.Server.ApplyMiddleware(a.Metrics)
		a.Hub = sse.NewHub()
		go a.Hub.Run()
		a.Server.MountCatalog(a.Store, a.Cfg.Name, a.Hub)
		a.Events.Listen(extension.KindInstantiated, sse.Forward(a.Hub))
		a.Server.MountEvents(a.Hub)
		if err := a.Server.Start(ctx); err != nil {
			return err
		}
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary(time.Since(start)).Display(os.Stdout)
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown runs OnStop hooks, stops the server, closes the store and
// flushes telemetry, all within the graceful timeout. Every step runs;
// errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		errs = append(errs, fmt.Errorf("onStop hook: %w", err))
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.Server != nil {
		if err := a.Server.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing extensions: %w", err))
	}
	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.ErrorFields("shutdown", err))
	} else {
		a.Logger.Info("Application shutdown complete")
	}
	return err
}
