package keel

import (
	"fmt"
	"reflect"
)

// Service identifies what is requested from a lifetime scope: a Go type plus an
// optional qualifying key. Two services are equal iff type and key match, so a
// Service can be used directly as a map key.
type Service struct {
	Type reflect.Type
	Key  string
}

// TypedService returns the unkeyed service for t.
func TypedService(t reflect.Type) Service {
	return Service{Type: t}
}

// KeyedService returns the service for t qualified by key.
func KeyedService(t reflect.Type, key string) Service {
	return Service{Type: t, Key: key}
}

// ServiceOf returns the service for the static type T. Interface types are
// supported: ServiceOf[io.Reader]() identifies io.Reader, not *io.Reader.
//
// Example:
//
//	svc := ServiceOf[*Database]()
//	primary := ServiceOf[*Database]("primary")
func ServiceOf[T any](key ...string) Service {
	svc := Service{Type: typeOf[T]()}
	if len(key) > 0 {
		svc.Key = key[0]
	}

	return svc
}

// WithType returns a copy of s targeting t with the same key.
func (s Service) WithType(t reflect.Type) Service {
	return Service{Type: t, Key: s.Key}
}

// IsZero reports whether s has no type.
func (s Service) IsZero() bool {
	return s.Type == nil
}

// String returns a human-readable representation of the service.
func (s Service) String() string {
	name := typeName(s.Type)
	if s.Key == "" {
		return name
	}

	return fmt.Sprintf("%s[key=%s]", name, s.Key)
}

// Key provides type-safe service identification.
// Use NewKey to create typed keys for your services.
type Key[T any] struct {
	name string
}

// NewKey creates a new typed service key.
// The type parameter T ensures type safety when registering and resolving services.
//
// Example:
//
//	var PrimaryDB = NewKey[*Database]("primary")
//	RegisterFunc(b, NewPrimaryDatabase, As(PrimaryDB.Service()))
//	db, err := ResolveKey(scope, PrimaryDB)
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the string name of the key.
func (k Key[T]) Name() string {
	return k.name
}

// Service returns the keyed service identified by k.
func (k Key[T]) Service() Service {
	return ServiceOf[T](k.name)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
