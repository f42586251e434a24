package keel

import (
	"reflect"

	"github.com/pkg/errors"
)

// Module groups related registrations.
type Module interface {
	Load(b *Builder) error
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(b *Builder) error

// Load implements Module.
func (f ModuleFunc) Load(b *Builder) error {
	return f(b)
}

// RegisterModule loads the registrations of m into the builder.
//
// Example:
//
//	err := b.RegisterModule(keel.ModuleFunc(func(b *keel.Builder) error {
//	    _, err := keel.RegisterTypeOf[*Database](b, keel.SingleInstance())
//	    return err
//	}))
func (b *Builder) RegisterModule(m Module) error {
	if m == nil {
		return NewArgumentError("module", "cannot be nil")
	}

	if err := m.Load(b); err != nil {
		return errors.Wrapf(err, "load module %T", m)
	}

	return nil
}

// RegisterModules loads several modules in order, stopping at the first failure.
//
// Example:
//
//	err := b.RegisterModules(storageModule, httpModule)
func (b *Builder) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := b.RegisterModule(m); err != nil {
			return err
		}
	}

	return nil
}

// Component describes one reflection registration for batch registration.
type Component struct {
	Type    reflect.Type
	Options []RegisterOption
}

// ComponentOf creates a Component for T.
//
// Example:
//
//	b.RegisterComponents(
//	    keel.ComponentOf[*Database](keel.SingleInstance()),
//	    keel.ComponentOf[*Cache](keel.InstancePerLifetimeScope()),
//	)
func ComponentOf[T any](opts ...RegisterOption) Component {
	return Component{Type: typeOf[T](), Options: opts}
}

// RegisterComponents registers several reflection components in a single call.
// Returns error if any registration fails.
func (b *Builder) RegisterComponents(components ...Component) error {
	for _, c := range components {
		if _, err := b.RegisterType(c.Type, c.Options...); err != nil {
			return err
		}
	}

	return nil
}
