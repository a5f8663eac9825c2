package extension

import (
	"context"
	stderrors "errors"
	"io"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/extkit/event"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/observability"
)

// Store owns the type and extension registries and hands out instances.
type Store struct {
	types        *TypeRegistry
	registry     *Registry
	instantiator Instantiator
	log          Logger
	notifier     Notifier

	mu        sync.RWMutex
	instances map[string]any
	order     []string // instantiation order of cached singletons
	validated map[string]bool
	locks     map[string]*sync.Mutex
	closed    bool
}

var _ observability.HealthChecker = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store and both registries.
func WithLogger(log Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNotifier sets the receiver of lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// New creates a Store that reads metadata from reader and constructs
// instances with instantiator.
func New(reader MetadataReader, instantiator Instantiator, opts ...Option) *Store {
	s := &Store{
		instantiator: instantiator,
		log:          logger.WithComponent("extension"),
		notifier:     event.NewDispatcher(),
		instances:    make(map[string]any),
		validated:    make(map[string]bool),
		locks:        make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.types = newTypeRegistry(reader, s.log)
	s.registry = newRegistry(s.types, reader, s.log, func(ctx context.Context, extension string) error {
		_, err := s.Get(ctx, extension)
		return err
	})
	return s
}

// Types returns the extension point registry.
func (s *Store) Types() *TypeRegistry { return s.types }

// Registry returns the extension registry.
func (s *Store) Registry() *Registry { return s.registry }

// Has reports whether extension is registered.
func (s *Store) Has(extension string) bool {
	return s.registry.Has(extension)
}

// Lookup returns the record of a registered extension without
// instantiating it.
func (s *Store) Lookup(extension string) (*Record, error) {
	if rec, ok := s.registry.Get(extension); ok {
		return rec, nil
	}
	return nil, extensionNotLoaded(extension)
}

// Create returns a new instance of a non-singleton extension. Instances are
// never cached.
func (s *Store) Create(ctx context.Context, extension string, params map[string]any) (any, error) {
	rec, err := s.record(extension)
	if err != nil {
		return nil, err
	}
	if rec.Singleton() {
		s.log.Error("Cannot create a singleton extension, use get", logger.Fields(logger.FieldExtension, extension))
		return nil, extensionSingleton(extension, AccessorGet)
	}

	s.log.Debug("Creating extension instance", logger.Fields(logger.FieldExtension, extension))

	if params == nil {
		params = map[string]any{}
	} else {
		params = maps.Clone(params)
	}
	instance, err := s.construct(ctx, rec, params)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, rec, instance)
	return instance, nil
}

// Get returns the shared instance of a singleton extension, constructing
// it on first use with the extension's singleton parameters.
func (s *Store) Get(ctx context.Context, extension string) (any, error) {
	if instance, ok := s.cached(extension); ok {
		return instance, nil
	}

	rec, err := s.record(extension)
	if err != nil {
		return nil, err
	}
	if !rec.Singleton() {
		s.log.Error("Cannot get a non-singleton extension, use create", logger.Fields(logger.FieldExtension, extension))
		return nil, extensionSingleton(extension, AccessorCreate)
	}

	lock := s.keyLock(extension)
	lock.Lock()
	defer lock.Unlock()

	if instance, ok := s.cached(extension); ok {
		return instance, nil
	}

	s.log.Debug("Creating singleton extension instance", logger.Fields(logger.FieldExtension, extension))

	instance, err := s.construct(ctx, rec, rec.SingletonParameters())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.instances[extension] = instance
	s.order = append(s.order, extension)
	s.mu.Unlock()

	s.notify(ctx, rec, instance)
	return instance, nil
}

// Instantiated reports whether a singleton instance is cached for extension.
func (s *Store) Instantiated(extension string) bool {
	_, ok := s.cached(extension)
	return ok
}

// ValidateDependencies checks that every dependency of extension is
// registered. Success is remembered; there is no way to unregister.
func (s *Store) ValidateDependencies(extension string) error {
	rec, err := s.record(extension)
	if err != nil {
		return err
	}
	return s.validateDependencies(rec)
}

func (s *Store) validateDependencies(rec *Record) error {
	s.mu.RLock()
	done := s.validated[rec.Key()]
	s.mu.RUnlock()
	if done {
		return nil
	}

	var missing []string
	for _, dep := range rec.Dependencies() {
		if !s.registry.Has(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		s.log.Error("Extension has missing dependencies", logger.Fields(
			logger.FieldExtension, rec.Key(),
			logger.FieldDependencies, missing,
		))
		return missingDependencies(rec.Key(), missing)
	}

	s.mu.Lock()
	s.validated[rec.Key()] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) construct(ctx context.Context, rec *Record, params map[string]any) (any, error) {
	if err := s.validateDependencies(rec); err != nil {
		return nil, err
	}

	instance, err := s.instantiator.Instantiate(ContextWithRecord(ctx, rec), rec.Key(), params)
	if err != nil {
		s.log.Error("Extension instantiation failed", logger.Fields(
			logger.FieldExtension, rec.Key(),
			logger.FieldError, err.Error(),
		))
		return nil, instantiationFailed(rec.Key(), err)
	}
	return instance, nil
}

// notify dispatches the lifecycle event. Listener failures never change the
// outcome of the call that constructed the instance.
func (s *Store) notify(ctx context.Context, rec *Record, instance any) {
	e := newInstantiatedEvent(rec, instance)
	if err := s.notifier.Dispatch(ctx, e); err != nil {
		s.log.Error("Extension event listener failed", logger.Fields(
			logger.FieldExtension, rec.Key(),
			logger.FieldEvent, e.EventID(),
			logger.FieldError, err.Error(),
		))
	}
}

func (s *Store) record(extension string) (*Record, error) {
	rec, ok := s.registry.Get(extension)
	if !ok {
		s.log.Error("Extension is not loaded", logger.Fields(logger.FieldExtension, extension))
		return nil, extensionNotLoaded(extension)
	}
	return rec, nil
}

func (s *Store) cached(extension string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[extension]
	return instance, ok
}

func (s *Store) keyLock(extension string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[extension]
	if !ok {
		l = &sync.Mutex{}
		s.locks[extension] = l
	}
	return l
}

type stopper interface {
	Stop(ctx context.Context) error
}

// Close stops cached singletons in reverse instantiation order. Instances
// implementing Stop(context.Context) error or io.Closer are closed; others
// are skipped. Close is idempotent.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := append([]string(nil), s.order...)
	instances := maps.Clone(s.instances)
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		key := order[i]
		var err error
		switch v := instances[key].(type) {
		case stopper:
			err = v.Stop(ctx)
		case io.Closer:
			err = v.Close()
		default:
			continue
		}
		if err != nil {
			s.log.Error("Closing extension failed", logger.Fields(
				logger.FieldExtension, key,
				logger.FieldError, err.Error(),
			))
			errs = append(errs, err)
			continue
		}
		s.log.Debug("Closed extension", logger.Fields(logger.FieldExtension, key))
	}
	return stderrors.Join(errs...)
}

// CheckHealth reports catalog sizes. The store is degraded while any
// registered extension names a dependency that is not registered.
func (s *Store) CheckHealth(_ context.Context) observability.Health {
	s.mu.RLock()
	instantiated := len(s.instances)
	s.mu.RUnlock()

	var unresolved []string
	for _, rec := range s.registry.All() {
		for _, dep := range rec.Dependencies() {
			if !s.registry.Has(dep) {
				unresolved = append(unresolved, rec.Key())
				break
			}
		}
	}

	h := observability.Health{
		Name:   "extension-store",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"points":       strconv.Itoa(s.types.Len()),
			"extensions":   strconv.Itoa(s.registry.Len()),
			"instantiated": strconv.Itoa(instantiated),
		},
	}
	if len(unresolved) > 0 {
		h.Status = observability.HealthStatusDegraded
		h.Message = "missing dependencies: " + strings.Join(unresolved, ", ")
		h.Details["unresolved"] = strconv.Itoa(len(unresolved))
	}
	return h
}
