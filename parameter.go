package keel

import (
	"fmt"
	"reflect"

	"github.com/xraph/go-utils/errs"
)

// ParameterInfo describes one slot a Parameter may fill: a constructor argument
// or, when Property is set, a settable property.
type ParameterInfo struct {
	Name     string
	Type     reflect.Type
	Position int
	Key      string // service key used when the slot is autowired
	Property bool
}

// ValueProvider produces the value for a bound slot. It is only invoked after
// a constructor has been selected.
type ValueProvider func() (any, error)

// Parameter supplies a value for the slots it matches. A parameter that does
// not match any slot of the constructor being bound is ignored.
type Parameter interface {
	CanSupplyValue(slot ParameterInfo, ctx ComponentContext) (ValueProvider, bool)
}

// ParameterFunc adapts a function to the Parameter interface.
type ParameterFunc func(slot ParameterInfo, ctx ComponentContext) (ValueProvider, bool)

// CanSupplyValue implements Parameter.
func (f ParameterFunc) CanSupplyValue(slot ParameterInfo, ctx ComponentContext) (ValueProvider, bool) {
	return f(slot, ctx)
}

type constantParameter struct {
	match func(ParameterInfo) bool
	value any
}

func (p constantParameter) CanSupplyValue(slot ParameterInfo, _ ComponentContext) (ValueProvider, bool) {
	if !p.match(slot) {
		return nil, false
	}

	return func() (any, error) { return p.value, nil }, true
}

// NamedParameter supplies value to the constructor argument called name.
//
// Usage:
//
//	scope.ResolveService(ServiceOf[*Mailer](), NamedParameter("host", "smtp.local"))
func NamedParameter(name string, value any) Parameter {
	return constantParameter{
		match: func(s ParameterInfo) bool { return !s.Property && s.Name == name },
		value: value,
	}
}

// TypedParameter supplies value to constructor arguments of exactly type t.
func TypedParameter(t reflect.Type, value any) Parameter {
	return constantParameter{
		match: func(s ParameterInfo) bool { return !s.Property && s.Type == t },
		value: value,
	}
}

// TypedParameterOf supplies value to constructor arguments of type T.
func TypedParameterOf[T any](value T) Parameter {
	return TypedParameter(typeOf[T](), value)
}

// PositionalParameter supplies value to the constructor argument at position.
func PositionalParameter(position int, value any) Parameter {
	return constantParameter{
		match: func(s ParameterInfo) bool { return !s.Property && s.Position == position },
		value: value,
	}
}

// PropertyParameter supplies value to the settable property called name.
func PropertyParameter(name string, value any) Parameter {
	return constantParameter{
		match: func(s ParameterInfo) bool { return s.Property && s.Name == name },
		value: value,
	}
}

// ResolvedParameter matches slots accepted by predicate and computes the value
// with accessor, which may itself resolve from ctx.
//
// Usage:
//
//	ResolvedParameter(
//	    func(s ParameterInfo, _ ComponentContext) bool { return s.Name == "cache" },
//	    func(_ ParameterInfo, ctx ComponentContext) (any, error) {
//	        return ctx.ResolveService(ServiceOf[Cache]("redis"))
//	    },
//	)
func ResolvedParameter(
	predicate func(ParameterInfo, ComponentContext) bool,
	accessor func(ParameterInfo, ComponentContext) (any, error),
) Parameter {
	return ParameterFunc(func(slot ParameterInfo, ctx ComponentContext) (ValueProvider, bool) {
		if !predicate(slot, ctx) {
			return nil, false
		}

		return func() (any, error) { return accessor(slot, ctx) }, true
	})
}

// autowiringParameter resolves constructor arguments by type from the context.
// It is the fallback consulted after every explicit parameter.
type autowiringParameter struct{}

func (autowiringParameter) CanSupplyValue(slot ParameterInfo, ctx ComponentContext) (ValueProvider, bool) {
	if slot.Property || slot.Type == nil {
		return nil, false
	}

	svc := Service{Type: slot.Type, Key: slot.Key}
	if !ctx.IsRegistered(svc) {
		return nil, false
	}

	return func() (any, error) { return ctx.ResolveService(svc) }, true
}

// convertValue turns a supplied value into a value of type t. nil becomes the
// zero value of t.
func convertValue(raw any, t reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(raw)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	if v.Type().ConvertibleTo(t) && !(isInteger(v.Kind()) && t.Kind() == reflect.String) {
		return v.Convert(t), nil
	}

	return reflect.Value{}, errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("cannot use value of type %s as %s", v.Type(), t),
		nil,
	)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}
