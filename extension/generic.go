package extension

import (
	"context"
	"reflect"
)

// Get returns the singleton instance of extension as T.
func Get[T any](ctx context.Context, s *Store, extension string) (T, error) {
	var zero T
	instance, err := s.Get(ctx, extension)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, instanceType(extension, typeName[T](), instance)
	}
	return typed, nil
}

// Create returns a new instance of extension as T.
func Create[T any](ctx context.Context, s *Store, extension string, params map[string]any) (T, error) {
	var zero T
	instance, err := s.Create(ctx, extension, params)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, instanceType(extension, typeName[T](), instance)
	}
	return typed, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
