package keel

import (
	"errors"
	"fmt"
	"reflect"
)

// Activator produces one raw instance of a component. Lifecycle handlers,
// sharing and disposal tracking are applied around it by the resolution
// operation.
type Activator interface {
	// LimitType is the most specific type instances are known to have.
	LimitType() reflect.Type

	// Activate builds an instance, resolving dependencies through ctx.
	Activate(ctx ComponentContext, params []Parameter) (any, error)
}

// Factory creates a component instance from a component context and the
// parameters supplied to the resolve call.
type Factory func(ctx ComponentContext, params []Parameter) (any, error)

// errNilInstance is returned when a factory or constructor produces nothing.
var errNilInstance = errors.New("factory returned a nil instance")

// =============================================================================
// PROVIDED INSTANCE
// =============================================================================

// InstanceActivator returns an already-built value.
type InstanceActivator struct {
	instance any
}

// NewInstanceActivator creates an activator for a pre-built instance.
func NewInstanceActivator(instance any) (*InstanceActivator, error) {
	if instance == nil {
		return nil, NewArgumentError("instance", "cannot be nil")
	}

	return &InstanceActivator{instance: instance}, nil
}

// LimitType implements Activator.
func (a *InstanceActivator) LimitType() reflect.Type {
	return reflect.TypeOf(a.instance)
}

// Activate implements Activator.
func (a *InstanceActivator) Activate(ComponentContext, []Parameter) (any, error) {
	return a.instance, nil
}

// =============================================================================
// DELEGATE
// =============================================================================

// DelegateActivator invokes a Factory.
type DelegateActivator struct {
	limit   reflect.Type
	factory Factory
}

// NewDelegateActivator creates an activator for factory. limit may be an
// interface type when the concrete type is only known at runtime.
func NewDelegateActivator(limit reflect.Type, factory Factory) (*DelegateActivator, error) {
	if factory == nil {
		return nil, NewArgumentError("factory", "cannot be nil")
	}

	if limit == nil {
		return nil, NewArgumentError("limit", "cannot be nil")
	}

	return &DelegateActivator{limit: limit, factory: factory}, nil
}

// LimitType implements Activator.
func (a *DelegateActivator) LimitType() reflect.Type {
	return a.limit
}

// Activate implements Activator.
func (a *DelegateActivator) Activate(ctx ComponentContext, params []Parameter) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory for %s panicked: %v", typeName(a.limit), r)
		}
	}()

	instance, err = a.factory(ctx, params)
	if err != nil {
		return nil, err
	}

	if isNil(instance) {
		return nil, errNilInstance
	}

	return instance, nil
}

// isNil reports whether v is nil or a typed nil pointer, map, slice, func or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// =============================================================================
// REFLECTION
// =============================================================================

// ReflectionActivator builds a type by selecting one of its constructors.
//
// Selection binds every slot of every candidate constructor: parameters
// passed to the resolve call win, then the parameters configured on the
// registration, then resolution by type from the current scope. Among the
// candidates whose slots are all bound, the one with the most parameters is
// invoked; ties go to the first candidate in descriptor order.
type ReflectionActivator struct {
	implType           reflect.Type
	finder             ConstructorFinder
	parameters         []Parameter
	properties         []Parameter
	autowireProperties bool
}

// NewReflectionActivator creates an activator for implType. A nil finder
// means DefaultConstructorFinder.
func NewReflectionActivator(implType reflect.Type, finder ConstructorFinder, parameters, properties []Parameter) (*ReflectionActivator, error) {
	if implType == nil {
		return nil, NewArgumentError("implementation", "cannot be nil")
	}

	if implType.Kind() == reflect.Interface {
		return nil, NewArgumentError("implementation",
			fmt.Sprintf("%s is an interface and cannot be constructed", implType))
	}

	if finder == nil {
		finder = DefaultConstructorFinder
	}

	return &ReflectionActivator{
		implType:   implType,
		finder:     finder,
		parameters: append([]Parameter(nil), parameters...),
		properties: append([]Parameter(nil), properties...),
	}, nil
}

// LimitType implements Activator.
func (a *ReflectionActivator) LimitType() reflect.Type {
	return a.implType
}

// binding is a constructor whose every slot has a value provider.
type binding struct {
	ctor   Constructor
	values []ValueProvider
}

// Activate implements Activator.
func (a *ReflectionActivator) Activate(ctx ComponentContext, params []Parameter) (any, error) {
	ctors := a.finder.FindConstructors(a.implType)
	if len(ctors) == 0 {
		return nil, NewDependencyResolutionError(a.implType, nil)
	}

	available := make([]Parameter, 0, len(params)+len(a.parameters)+1)
	available = append(available, params...)
	available = append(available, a.parameters...)
	available = append(available, autowiringParameter{})

	best, missing := a.selectConstructor(ctors, available, ctx)
	if best == nil {
		return nil, NewDependencyResolutionError(a.implType, missing)
	}

	args := make([]reflect.Value, len(best.values))
	for i, provide := range best.values {
		slot := best.ctor.params[i]

		raw, err := provide()
		if err != nil {
			return nil, err
		}

		arg, err := convertValue(raw, slot.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s' of %s: %w", slot.Name, typeName(a.implType), err)
		}

		args[i] = arg
	}

	instance, err := best.ctor.call(args)
	if err != nil {
		return nil, err
	}

	if err := a.injectProperties(ctx, instance, params); err != nil {
		return nil, err
	}

	return instance, nil
}

// selectConstructor returns the bindable constructor with the most parameters,
// or the first slot that could not be bound when no constructor is bindable.
func (a *ReflectionActivator) selectConstructor(ctors []Constructor, available []Parameter, ctx ComponentContext) (*binding, *ParameterInfo) {
	var (
		best    *binding
		missing *ParameterInfo
	)

	for _, ctor := range ctors {
		b, unbound := bindConstructor(ctor, available, ctx)
		if unbound != nil {
			if missing == nil {
				missing = unbound
			}

			continue
		}

		if best == nil || len(ctor.params) > len(best.ctor.params) {
			best = b
		}
	}

	return best, missing
}

func bindConstructor(ctor Constructor, available []Parameter, ctx ComponentContext) (*binding, *ParameterInfo) {
	values := make([]ValueProvider, len(ctor.params))

	for i, slot := range ctor.params {
		for _, p := range available {
			if provide, ok := p.CanSupplyValue(slot, ctx); ok {
				values[i] = provide

				break
			}
		}

		if values[i] == nil {
			unbound := slot

			return nil, &unbound
		}
	}

	return &binding{ctor: ctor, values: values}, nil
}

// injectProperties sets properties matched by an explicit property parameter
// and, when configured, autowires the remaining zero-valued ones.
func (a *ReflectionActivator) injectProperties(ctx ComponentContext, instance any, params []Parameter) error {
	if len(a.properties) == 0 && len(params) == 0 && !a.autowireProperties {
		return nil
	}

	available := make([]Parameter, 0, len(params)+len(a.properties))
	available = append(available, params...)
	available = append(available, a.properties...)

	for _, prop := range settableProperties(instance) {
		set, err := setProperty(ctx, prop, available)
		if err != nil {
			return err
		}

		if set || !a.autowireProperties || !prop.field.IsZero() {
			continue
		}

		svc := Service{Type: prop.info.Type, Key: prop.info.Key}
		if !ctx.IsRegistered(svc) {
			continue
		}

		value, err := ctx.ResolveService(svc)
		if err != nil {
			return err
		}

		if err := assignProperty(prop, value); err != nil {
			return err
		}
	}

	return nil
}

func setProperty(ctx ComponentContext, prop property, available []Parameter) (bool, error) {
	for _, p := range available {
		provide, ok := p.CanSupplyValue(prop.info, ctx)
		if !ok {
			continue
		}

		value, err := provide()
		if err != nil {
			return false, err
		}

		return true, assignProperty(prop, value)
	}

	return false, nil
}

func assignProperty(prop property, value any) error {
	v, err := convertValue(value, prop.info.Type)
	if err != nil {
		return fmt.Errorf("property '%s': %w", prop.info.Name, err)
	}

	prop.field.Set(v)

	return nil
}
