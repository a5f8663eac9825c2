package di

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/extension"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	paramsType  = reflect.TypeFor[map[string]any]()
	errorType   = reflect.TypeFor[error]()
)

// Container maps extension keys to constructors.
type Container struct {
	mu           sync.RWMutex
	constructors map[string]*constructor
}

var _ extension.Instantiator = (*Container)(nil)

type constructor struct {
	fn         reflect.Value
	wantsCtx   bool
	wantsArgs  bool
	returnsErr bool
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{constructors: make(map[string]*constructor)}
}

// Provide registers fn as the constructor for key. The signature is
// validated immediately.
func (c *Container) Provide(key string, fn any) error {
	ctor, err := newConstructor(fn)
	if err != nil {
		return apperrors.InvalidInput("constructor", fmt.Sprintf("%s: %v", key, err)).WithDetail("key", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.constructors[key]; ok {
		return apperrors.AlreadyExists("constructor").WithDetail("key", key)
	}
	c.constructors[key] = ctor
	return nil
}

// MustProvide is Provide that panics on error, for static wiring.
func (c *Container) MustProvide(key string, fn any) {
	if err := c.Provide(key, fn); err != nil {
		panic(fmt.Sprintf("di: %v", err))
	}
}

// Has reports whether a constructor is registered for key.
func (c *Container) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.constructors[key]
	return ok
}

// Keys returns the registered keys, sorted.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.constructors))
	for k := range c.constructors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Instantiate calls the constructor registered for key.
func (c *Container) Instantiate(ctx context.Context, key string, params map[string]any) (any, error) {
	c.mu.RLock()
	ctor, ok := c.constructors[key]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("constructor", key)
	}
	return ctor.call(ctx, key, params)
}

func newConstructor(fn any) (*constructor, error) {
	if fn == nil {
		return nil, fmt.Errorf("constructor is nil")
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %s", t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("constructor must not be variadic")
	}

	ctor := &constructor{fn: v}
	in := 0
	if in < t.NumIn() && t.In(in) == contextType {
		ctor.wantsCtx = true
		in++
	}
	if in < t.NumIn() && t.In(in) == paramsType {
		ctor.wantsArgs = true
		in++
	}
	if in != t.NumIn() {
		return nil, fmt.Errorf("unsupported parameter %s in %s", t.In(in), t)
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			return nil, fmt.Errorf("constructor must return an instance, got %s", t)
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
		ctor.returnsErr = true
	default:
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %s", t)
	}
	return ctor, nil
}

func (ctor *constructor) call(ctx context.Context, key string, params map[string]any) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Internal(fmt.Errorf("constructor %s panicked: %v", key, r))
		}
	}()

	args := make([]reflect.Value, 0, 2)
	if ctor.wantsCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}
	if ctor.wantsArgs {
		if params == nil {
			params = map[string]any{}
		}
		args = append(args, reflect.ValueOf(params))
	}

	out := ctor.fn.Call(args)
	if ctor.returnsErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
