package keel

import (
	"fmt"
)

// Resolve resolves the unkeyed service T with type safety.
//
// Usage:
//
//	db, err := keel.Resolve[*Database](scope)
func Resolve[T any](ctx ComponentContext, params ...Parameter) (T, error) {
	return resolveAs[T](ctx, ServiceOf[T](), params)
}

// ResolveNamed resolves T qualified by key.
func ResolveNamed[T any](ctx ComponentContext, key string, params ...Parameter) (T, error) {
	return resolveAs[T](ctx, ServiceOf[T](key), params)
}

// ResolveKey resolves the service identified by a typed key.
func ResolveKey[T any](ctx ComponentContext, key Key[T], params ...Parameter) (T, error) {
	return resolveAs[T](ctx, key.Service(), params)
}

// ResolveAs resolves svc and asserts the instance is a T. svc may be keyed
// or identify a different type than T, such as an implementation type.
func ResolveAs[T any](ctx ComponentContext, svc Service, params ...Parameter) (T, error) {
	return resolveAs[T](ctx, svc, params)
}

// TryResolve resolves T, reporting false without an error when T is not registered.
func TryResolve[T any](ctx ComponentContext, params ...Parameter) (T, bool, error) {
	var zero T

	svc := ServiceOf[T]()

	instance, ok, err := ctx.TryResolveService(svc, params...)
	if err != nil || !ok {
		return zero, false, err
	}

	typed, err := cast[T](svc, instance)
	if err != nil {
		return zero, false, err
	}

	return typed, true, nil
}

// MustResolve resolves or panics - use only during startup.
func MustResolve[T any](ctx ComponentContext, params ...Parameter) T {
	instance, err := Resolve[T](ctx, params...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", ServiceOf[T](), err))
	}

	return instance
}

// ResolveAllOf resolves every registration of T in registration order.
func ResolveAllOf[T any](ctx ComponentContext, params ...Parameter) ([]T, error) {
	svc := ServiceOf[T]()

	instances, err := ctx.ResolveAll(svc, params...)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(instances))
	for i, instance := range instances {
		if out[i], err = cast[T](svc, instance); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// RegisterKeyed registers a typed factory under a typed key.
//
// Example:
//
//	var Primary = keel.NewKey[*Database]("primary")
//	keel.RegisterKeyed(b, Primary, func(keel.ComponentContext) (*Database, error) {
//	    return OpenDatabase(primaryDSN)
//	}, keel.SingleInstance())
func RegisterKeyed[T any](b *Builder, key Key[T], fn func(ctx ComponentContext) (T, error), opts ...RegisterOption) (*Registration, error) {
	return RegisterFunc(b, fn, append([]RegisterOption{As(key.Service())}, opts...)...)
}

// Inject returns a parameter that fills the constructor argument called name
// with the service T qualified by key.
//
// Usage:
//
//	keel.RegisterTypeOf[*Reports](b,
//	    keel.WithParameter(keel.Inject[*Database]("db", "replica")),
//	)
func Inject[T any](name, key string) Parameter {
	svc := ServiceOf[T](key)

	return ResolvedParameter(
		func(slot ParameterInfo, _ ComponentContext) bool {
			return !slot.Property && slot.Name == name
		},
		func(_ ParameterInfo, ctx ComponentContext) (any, error) {
			return ctx.ResolveService(svc)
		},
	)
}

func resolveAs[T any](ctx ComponentContext, svc Service, params []Parameter) (T, error) {
	var zero T

	instance, err := ctx.ResolveService(svc, params...)
	if err != nil {
		return zero, err
	}

	return cast[T](svc, instance)
}

func cast[T any](svc Service, instance any) (T, error) {
	var zero T

	if instance == nil {
		return zero, nil
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, NewTypeMismatchError(svc, instance)
	}

	return typed, nil
}
