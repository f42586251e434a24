package keel

import (
	"fmt"
	"reflect"
	"strings"
)

// GenericDefinition identifies a generic type independently of its type
// arguments: Repository[int] and Repository[string] share one definition.
type GenericDefinition struct {
	pkgPath string
	name    string
	pointer bool
}

// GenericOf returns the definition of the generic type T. Any instantiation
// may be used to name it, conventionally with any as the type argument:
//
//	def := GenericOf[*Repository[any]]()
//
// The zero GenericDefinition is returned when T is not an instantiated
// generic type.
func GenericOf[T any]() GenericDefinition {
	def, _ := genericDefinitionOf(typeOf[T]())

	return def
}

// IsZero reports whether d names no generic type.
func (d GenericDefinition) IsZero() bool {
	return d.name == ""
}

// Matches reports whether t is an instantiation of d.
func (d GenericDefinition) Matches(t reflect.Type) bool {
	other, ok := genericDefinitionOf(t)

	return ok && other == d
}

// String returns the definition in Go syntax with an elided argument list.
func (d GenericDefinition) String() string {
	if d.IsZero() {
		return "<none>"
	}

	prefix := ""
	if d.pointer {
		prefix = "*"
	}

	return fmt.Sprintf("%s%s.%s[...]", prefix, d.pkgPath, d.name)
}

func genericDefinitionOf(t reflect.Type) (GenericDefinition, bool) {
	if t == nil {
		return GenericDefinition{}, false
	}

	pointer := false
	if t.Kind() == reflect.Ptr {
		pointer = true
		t = t.Elem()
	}

	base, _, found := strings.Cut(t.Name(), "[")
	if !found || base == "" {
		return GenericDefinition{}, false
	}

	return GenericDefinition{pkgPath: t.PkgPath(), name: base, pointer: pointer}, true
}

// openGenericSource closes an open generic registration over each requested
// instantiation. Instances of a closed type are built by reflection with the
// same constructor selection rules as any other type, so the generic type
// usually implements ConstructorProvider.
type openGenericSource struct {
	id            ID
	definition    GenericDefinition
	cfg           *registrationConfig
	defaultFinder ConstructorFinder
}

func newOpenGenericSource(def GenericDefinition, cfg *registrationConfig, defaultFinder ConstructorFinder) (*openGenericSource, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}

	if def.IsZero() {
		return nil, NewArgumentError("definition", "not a generic type")
	}

	for _, svc := range cfg.services {
		if !def.Matches(svc.Type) {
			return nil, NewArgumentError("service",
				fmt.Sprintf("%s cannot provide %s: open generic services must share the implementation definition",
					def, typeName(svc.Type)))
		}
	}

	return &openGenericSource{
		id:            nextID(),
		definition:    def,
		cfg:           cfg,
		defaultFinder: defaultFinder,
	}, nil
}

// RegistrationsFor implements RegistrationSource.
func (s *openGenericSource) RegistrationsFor(svc Service, _ func(Service) []*Registration) []*Registration {
	if svc.Key != s.cfg.key || !s.definition.Matches(svc.Type) {
		return nil
	}

	activator, err := newConfiguredReflectionActivator(svc.Type, s.cfg, s.defaultFinder)
	if err != nil {
		return nil
	}

	closed := *s.cfg
	closed.services = nil
	closed.asSelf = false

	reg, err := newRegistration(ID(fmt.Sprintf("%s[%s]", s.id, svc.Type)), activator, &closed)
	if err != nil {
		return nil
	}

	return []*Registration{reg}
}

// IsAdapterForIndividualComponents implements RegistrationSource.
func (s *openGenericSource) IsAdapterForIndividualComponents() bool {
	return false
}

// newConfiguredReflectionActivator builds the reflection activator described by
// a registration's options.
func newConfiguredReflectionActivator(t reflect.Type, cfg *registrationConfig, defaultFinder ConstructorFinder) (*ReflectionActivator, error) {
	finder := cfg.finder
	if finder == nil {
		finder = defaultFinder
	}

	activator, err := NewReflectionActivator(t, finder, cfg.parameters, cfg.properties)
	if err != nil {
		return nil, err
	}

	activator.autowireProperties = cfg.autowireProperties

	return activator, nil
}
