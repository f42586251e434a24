package keel

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// deferredWrapper is implemented by the wrapper types the deferred source
// synthesizes registrations for. The methods are called on a zero value and
// know the wrapped type from their type argument.
type deferredWrapper interface {
	innerType() reflect.Type
	wrap(resolve func() (any, error), md Metadata) any
}

var deferredWrapperType = reflect.TypeOf((*deferredWrapper)(nil)).Elem()

// Lazy defers resolution of a T until Value is first called. Requesting
// *Lazy[T] from a scope never activates T; every registration of T can be
// requested this way without registering the wrapper.
//
// Example:
//
//	type Reports struct {
//	    Mailer *keel.Lazy[*Mailer]
//	}
//
//	mailer, err := reports.Mailer.Value()
type Lazy[T any] struct {
	resolve  func() (any, error)
	metadata Metadata
	once     sync.Once
	value    T
	err      error
	created  atomic.Bool
}

// NewLazy creates a lazy value computed by fn.
func NewLazy[T any](fn func() (T, error), md Metadata) *Lazy[T] {
	return &Lazy[T]{
		resolve:  func() (any, error) { return fn() },
		metadata: md.clone(),
	}
}

// Value resolves the wrapped component on first call and returns the same
// result on every later call.
func (l *Lazy[T]) Value() (T, error) {
	l.once.Do(func() {
		instance, err := l.resolve()
		if err != nil {
			l.err = err

			return
		}

		typed, ok := instance.(T)
		if !ok && instance != nil {
			l.err = NewTypeMismatchError(ServiceOf[T](), instance)

			return
		}

		l.value = typed
		l.created.Store(true)
	})

	return l.value, l.err
}

// MustValue is like Value but panics on error.
func (l *Lazy[T]) MustValue() T {
	value, err := l.Value()
	if err != nil {
		panic(fmt.Sprintf("lazy %s failed: %v", typeName(typeOf[T]()), err))
	}

	return value
}

// IsValueCreated reports whether Value has produced a value.
func (l *Lazy[T]) IsValueCreated() bool {
	return l.created.Load()
}

// Metadata returns the metadata of the wrapped registration.
func (l *Lazy[T]) Metadata() Metadata {
	return l.metadata.clone()
}

func (*Lazy[T]) innerType() reflect.Type {
	return typeOf[T]()
}

func (*Lazy[T]) wrap(resolve func() (any, error), md Metadata) any {
	return &Lazy[T]{resolve: resolve, metadata: md}
}

// Provider resolves a new T on every call to Provide. Whether the instance is
// actually new depends on the sharing of the wrapped registration.
type Provider[T any] struct {
	resolve  func() (any, error)
	metadata Metadata
}

// Provide resolves the wrapped component.
func (p *Provider[T]) Provide() (T, error) {
	var zero T

	instance, err := p.resolve()
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, NewTypeMismatchError(ServiceOf[T](), instance)
	}

	return typed, nil
}

// MustProvide resolves and returns a new instance, panicking on error.
func (p *Provider[T]) MustProvide() T {
	value, err := p.Provide()
	if err != nil {
		panic(fmt.Sprintf("provider %s failed: %v", typeName(typeOf[T]()), err))
	}

	return value
}

// Metadata returns the metadata of the wrapped registration.
func (p *Provider[T]) Metadata() Metadata {
	return p.metadata.clone()
}

func (*Provider[T]) innerType() reflect.Type {
	return typeOf[T]()
}

func (*Provider[T]) wrap(resolve func() (any, error), md Metadata) any {
	return &Provider[T]{resolve: resolve, metadata: md}
}

// deferredSource synthesizes *Lazy[T] and *Provider[T] registrations, one per
// registration of T with the same key. The wrapper resolves the wrapped
// registration through the scope it was created in, or through the resolve
// that created it while that resolve is still activating components.
type deferredSource struct{}

// RegistrationsFor implements RegistrationSource.
func (deferredSource) RegistrationsFor(svc Service, lookup func(Service) []*Registration) []*Registration {
	t := svc.Type
	if t == nil || t.Kind() != reflect.Ptr || !t.Implements(deferredWrapperType) {
		return nil
	}

	proto, ok := reflect.New(t.Elem()).Interface().(deferredWrapper)
	if !ok {
		return nil
	}

	inner := Service{Type: proto.innerType(), Key: svc.Key}

	var out []*Registration

	for _, target := range lookup(inner) {
		target := target

		activator, err := NewDelegateActivator(t, func(ctx ComponentContext, _ []Parameter) (any, error) {
			scope := ctx.Scope()

			return proto.wrap(func() (any, error) {
				// Values read while the creating resolve is still building
				// components join it, so reading a component that is mid
				// activation is reported as a cycle.
				if rc, ok := ctx.(*resolveContext); ok && rc.op.activating() {
					return rc.ResolveComponent(target)
				}

				return scope.ResolveComponent(target)
			}, target.Metadata()), nil
		})
		if err != nil {
			continue
		}

		cfg := newRegistrationConfig()
		cfg.services = []Service{svc}
		cfg.ownership = OwnershipExternal
		cfg.metadata = target.metadata
		cfg.target = target

		reg, err := newRegistration(ID(fmt.Sprintf("%s(%s)", t, target.ID())), activator, cfg)
		if err != nil {
			continue
		}

		out = append(out, reg)
	}

	return out
}

// IsAdapterForIndividualComponents implements RegistrationSource.
func (deferredSource) IsAdapterForIndividualComponents() bool {
	return true
}
