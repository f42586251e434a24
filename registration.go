package keel

import (
	"fmt"
	"reflect"
	"strconv"
	"sync/atomic"
)

// ID uniquely identifies a registration. Explicit registrations receive a
// sequential id; registrations synthesized by sources derive theirs from what
// they were built from, so repeated lookups yield the same id.
type ID string

var registrationSeq atomic.Uint64

func nextID() ID {
	return ID("r" + strconv.FormatUint(registrationSeq.Add(1), 10))
}

// Sharing controls whether an activated instance is cached and reused.
type Sharing int

const (
	// SharingNone creates a new instance on every resolve. This is the default.
	SharingNone Sharing = iota

	// SharingShared caches the instance in the owning lifetime scope.
	SharingShared
)

// String returns the human-readable name of the sharing mode.
func (s Sharing) String() string {
	switch s {
	case SharingNone:
		return "none"
	case SharingShared:
		return "shared"
	default:
		return "unknown"
	}
}

// Lifetime selects which scope owns a shared instance.
type Lifetime int

const (
	// LifetimeCurrentScope makes the first scope that resolves the component
	// its owner; descendants reuse the instance. This is the default.
	LifetimeCurrentScope Lifetime = iota

	// LifetimeRootScope makes the root scope the owner, giving one instance per tree.
	LifetimeRootScope
)

// String returns the human-readable name of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case LifetimeCurrentScope:
		return "current-scope"
	case LifetimeRootScope:
		return "root-scope"
	default:
		return "unknown"
	}
}

// Ownership controls whether the owning scope disposes an instance.
type Ownership int

const (
	// OwnershipOwned disposes the instance with its owning scope. This is the default.
	OwnershipOwned Ownership = iota

	// OwnershipExternal leaves disposal to the caller.
	OwnershipExternal
)

// String returns the human-readable name of the ownership mode.
func (o Ownership) String() string {
	switch o {
	case OwnershipOwned:
		return "owned"
	case OwnershipExternal:
		return "external"
	default:
		return "unknown"
	}
}

// PreparingEvent is raised before a component is activated. Handlers may append
// to Parameters, or set Instance to skip the activator entirely.
type PreparingEvent struct {
	Context      ComponentContext
	Registration *Registration
	Parameters   []Parameter
	Instance     any
}

// ActivatingEvent is raised after activation while the registration is still on
// the activation stack. Handlers may replace Instance, for example with a proxy.
type ActivatingEvent struct {
	Context      ComponentContext
	Registration *Registration
	Parameters   []Parameter
	Instance     any
}

// ActivatedEvent is raised once the instance is complete and, for shared
// components, published.
type ActivatedEvent struct {
	Context      ComponentContext
	Registration *Registration
	Parameters   []Parameter
	Instance     any
}

// PreparingHandler handles a PreparingEvent.
type PreparingHandler func(e *PreparingEvent) error

// ActivatingHandler handles an ActivatingEvent.
type ActivatingHandler func(e *ActivatingEvent) error

// ActivatedHandler handles an ActivatedEvent.
type ActivatedHandler func(e *ActivatedEvent) error

// Registration describes one buildable component. It is immutable once created.
type Registration struct {
	id         ID
	activator  Activator
	sharing    Sharing
	lifetime   Lifetime
	ownership  Ownership
	services   []Service
	metadata   Metadata
	preparing  []PreparingHandler
	activating []ActivatingHandler
	activated  []ActivatedHandler
	target     *Registration
}

// NewRegistration creates a registration for activator. An empty id is replaced
// by a generated one. Services default to the activator's limit type, and every
// service must be assignable from the limit type.
func NewRegistration(id ID, activator Activator, opts ...RegisterOption) (*Registration, error) {
	cfg := newRegistrationConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return newRegistration(id, activator, cfg)
}

func newRegistration(id ID, activator Activator, cfg *registrationConfig) (*Registration, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}

	if activator == nil {
		return nil, NewArgumentError("activator", "cannot be nil")
	}

	if id == "" {
		id = nextID()
	}

	limit := activator.LimitType()

	services := make([]Service, 0, len(cfg.services)+1)
	if len(cfg.services) == 0 || cfg.asSelf {
		services = append(services, Service{Type: limit, Key: cfg.key})
	}

	services = append(services, cfg.services...)

	for _, svc := range services {
		if svc.Type == nil {
			return nil, NewArgumentError("service", "service type cannot be nil")
		}

		if !assignableToService(limit, svc.Type) {
			return nil, NewArgumentError("service",
				fmt.Sprintf("component type %s does not support service %s", typeName(limit), svc))
		}
	}

	return &Registration{
		id:         id,
		activator:  activator,
		sharing:    cfg.sharing,
		lifetime:   cfg.lifetime,
		ownership:  cfg.ownership,
		services:   services,
		metadata:   cfg.metadata.clone(),
		preparing:  append([]PreparingHandler(nil), cfg.preparing...),
		activating: append([]ActivatingHandler(nil), cfg.activating...),
		activated:  append([]ActivatedHandler(nil), cfg.activated...),
		target:     cfg.target,
	}, nil
}

// assignableToService reports whether instances of limit can satisfy service.
// A limit of interface type (typically any, for delegates) is checked at resolve time.
func assignableToService(limit, service reflect.Type) bool {
	return limit == nil || limit.Kind() == reflect.Interface || limit.AssignableTo(service)
}

// ID returns the unique id of the registration.
func (r *Registration) ID() ID { return r.id }

// Activator returns the activation strategy.
func (r *Registration) Activator() Activator { return r.activator }

// LimitType returns the most specific type instances are known to have.
func (r *Registration) LimitType() reflect.Type { return r.activator.LimitType() }

// Sharing returns the sharing mode.
func (r *Registration) Sharing() Sharing { return r.sharing }

// Lifetime returns the lifetime of shared instances.
func (r *Registration) Lifetime() Lifetime { return r.lifetime }

// Ownership returns the ownership mode.
func (r *Registration) Ownership() Ownership { return r.ownership }

// Services returns the services the registration provides.
func (r *Registration) Services() []Service {
	return append([]Service(nil), r.services...)
}

// Metadata returns a copy of the registration's metadata.
func (r *Registration) Metadata() Metadata {
	return r.metadata.clone()
}

// Target returns the registration an adapter was built from, or r itself.
func (r *Registration) Target() *Registration {
	if r.target == nil {
		return r
	}

	return r.target.Target()
}

// Provides reports whether the registration declares svc.
func (r *Registration) Provides(svc Service) bool {
	for _, s := range r.services {
		if s == svc {
			return true
		}
	}

	return false
}

// String returns a short description used in diagnostics.
func (r *Registration) String() string {
	return fmt.Sprintf("%s (%s)", typeName(r.LimitType()), r.id)
}
