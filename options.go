package keel

import (
	"go.uber.org/zap"
)

// =============================================================================
// REGISTRATION OPTIONS
// =============================================================================

// RegisterOption configures a single registration.
type RegisterOption func(*registrationConfig)

type registrationConfig struct {
	services  []Service
	key       string
	asSelf    bool
	sharing   Sharing
	lifetime  Lifetime
	ownership Ownership
	metadata  Metadata

	preparing  []PreparingHandler
	activating []ActivatingHandler
	activated  []ActivatedHandler

	target *Registration

	// Reflection activator only.
	parameters         []Parameter
	properties         []Parameter
	finder             ConstructorFinder
	autowireProperties bool

	err error
}

func newRegistrationConfig() *registrationConfig {
	return &registrationConfig{
		metadata: make(Metadata),
	}
}

func (c *registrationConfig) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// As declares the services the registration provides. Without As (or with
// AsSelf) the registration provides its own implementation type.
func As(services ...Service) RegisterOption {
	return func(c *registrationConfig) {
		c.services = append(c.services, services...)
	}
}

// AsType declares that the registration provides the unkeyed service T.
//
// Example:
//
//	RegisterTypeOf[*FileStore](b, AsType[Store]())
func AsType[T any]() RegisterOption {
	return As(ServiceOf[T]())
}

// AsNamed declares that the registration provides T qualified by key.
func AsNamed[T any](key string) RegisterOption {
	return As(ServiceOf[T](key))
}

// AsSelf adds the implementation type to the declared services.
func AsSelf() RegisterOption {
	return func(c *registrationConfig) {
		c.asSelf = true
	}
}

// WithKey qualifies the implementation-type service with key.
func WithKey(key string) RegisterOption {
	return func(c *registrationConfig) {
		c.key = key
	}
}

// SingleInstance shares one instance across the whole scope tree.
func SingleInstance() RegisterOption {
	return func(c *registrationConfig) {
		c.sharing = SharingShared
		c.lifetime = LifetimeRootScope
	}
}

// InstancePerLifetimeScope shares one instance per lifetime scope. Child scopes
// reuse an instance already created by an ancestor.
func InstancePerLifetimeScope() RegisterOption {
	return func(c *registrationConfig) {
		c.sharing = SharingShared
		c.lifetime = LifetimeCurrentScope
	}
}

// InstancePerDependency creates a new instance on every resolve.
func InstancePerDependency() RegisterOption {
	return func(c *registrationConfig) {
		c.sharing = SharingNone
		c.lifetime = LifetimeCurrentScope
	}
}

// WithSharing sets the sharing mode.
func WithSharing(s Sharing) RegisterOption {
	return func(c *registrationConfig) {
		c.sharing = s
	}
}

// WithLifetime sets the owning scope of shared instances.
func WithLifetime(l Lifetime) RegisterOption {
	return func(c *registrationConfig) {
		c.lifetime = l
	}
}

// ExternallyOwned stops the owning scope from disposing instances.
func ExternallyOwned() RegisterOption {
	return func(c *registrationConfig) {
		c.ownership = OwnershipExternal
	}
}

// OwnedByLifetimeScope makes the owning scope dispose instances. This is the default.
func OwnedByLifetimeScope() RegisterOption {
	return func(c *registrationConfig) {
		c.ownership = OwnershipOwned
	}
}

// WithMetadata attaches a metadata entry.
func WithMetadata(key string, value any) RegisterOption {
	return func(c *registrationConfig) {
		c.metadata[key] = value
	}
}

// WithMetadataFrom attaches every exported field of a struct as metadata.
// Field names are used as keys unless a `meta:"..."` tag is present.
func WithMetadataFrom(src any) RegisterOption {
	return func(c *registrationConfig) {
		md, err := metadataFromStruct(src)
		if err != nil {
			c.fail(err)

			return
		}

		for k, v := range md {
			c.metadata[k] = v
		}
	}
}

// WithParameter adds a parameter consulted when binding constructor arguments,
// after the parameters of the resolve call.
func WithParameter(p Parameter) RegisterOption {
	return func(c *registrationConfig) {
		if p == nil {
			c.fail(NewArgumentError("parameter", "cannot be nil"))

			return
		}

		c.parameters = append(c.parameters, p)
	}
}

// WithProperty sets the settable property name on every activated instance.
func WithProperty(name string, value any) RegisterOption {
	return func(c *registrationConfig) {
		c.properties = append(c.properties, PropertyParameter(name, value))
	}
}

// UsingConstructors replaces the constructor table of the implementation type.
func UsingConstructors(ctors ...Constructor) RegisterOption {
	return func(c *registrationConfig) {
		if len(ctors) == 0 {
			c.fail(NewArgumentError("constructors", "at least one constructor is required"))

			return
		}

		c.finder = StaticConstructors(ctors...)
	}
}

// WithConstructorFinder replaces the strategy that lists constructors.
func WithConstructorFinder(f ConstructorFinder) RegisterOption {
	return func(c *registrationConfig) {
		c.finder = f
	}
}

// PropertiesAutowired resolves still-zero exported fields whose type is
// registered after construction.
func PropertiesAutowired() RegisterOption {
	return func(c *registrationConfig) {
		c.autowireProperties = true
	}
}

// OnPreparing adds a handler run before activation.
func OnPreparing(h PreparingHandler) RegisterOption {
	return func(c *registrationConfig) {
		c.preparing = append(c.preparing, h)
	}
}

// OnActivating adds a handler run after activation, before the instance is
// published.
func OnActivating(h ActivatingHandler) RegisterOption {
	return func(c *registrationConfig) {
		c.activating = append(c.activating, h)
	}
}

// OnActivated adds a handler run once the instance is complete.
func OnActivated(h ActivatedHandler) RegisterOption {
	return func(c *registrationConfig) {
		c.activated = append(c.activated, h)
	}
}

// targeting marks a synthesized registration as an adapter of target.
func targeting(target *Registration) RegisterOption {
	return func(c *registrationConfig) {
		c.target = target
	}
}

// =============================================================================
// CONTAINER OPTIONS
// =============================================================================

// Option configures a Builder and the container it builds.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	middleware []Middleware
	finder     ConstructorFinder
	tag        string
}

func defaultOptions() *options {
	return &options{
		logger: zap.NewNop(),
		finder: DefaultConstructorFinder,
		tag:    RootTag,
	}
}

// WithLogger sets the logger used for registration, scope and activation events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware adds resolution middleware. Middleware run in the order added.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithDefaultConstructorFinder sets the finder used by reflection registrations
// that do not configure their own.
func WithDefaultConstructorFinder(f ConstructorFinder) Option {
	return func(o *options) {
		if f != nil {
			o.finder = f
		}
	}
}

// WithRootTag sets the tag of the root lifetime scope.
func WithRootTag(tag string) Option {
	return func(o *options) {
		o.tag = tag
	}
}
