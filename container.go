package keel

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Builder collects registrations. A root builder produces a Container; the
// builders passed to BeginLifetimeScope configure scope-local registrations.
type Builder struct {
	registry *Registry
	opts     *options
	child    bool
	built    bool
}

// NewBuilder creates a builder for a new container.
//
// Example:
//
//	b := keel.NewBuilder(keel.WithLogger(logger))
//	keel.RegisterTypeOf[*Database](b, keel.SingleInstance())
//	keel.RegisterTypeOf[*UserService](b, keel.AsType[UserStore]())
//	c, err := b.Build()
func NewBuilder(opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	registry := NewRegistry(nil)
	registry.sources = append(registry.sources, deferredSource{}, scopeSource{})

	return &Builder{registry: registry, opts: o}
}

func newChildBuilder(parent *LifetimeScope) *Builder {
	return &Builder{
		registry: NewRegistry(parent.registry),
		opts: &options{
			logger:     parent.logger,
			middleware: parent.middleware.middleware,
			finder:     parent.finder,
			tag:        parent.tag,
		},
		child: true,
	}
}

// Register adds a registration built elsewhere, for example with NewRegistration.
func (b *Builder) Register(reg *Registration) error {
	if err := b.registry.Register(reg); err != nil {
		return err
	}

	b.opts.logger.Debug("component registered",
		zap.String("registration", string(reg.ID())),
		zap.String("type", typeName(reg.LimitType())),
		zap.Stringer("sharing", reg.Sharing()),
		zap.Stringer("lifetime", reg.Lifetime()),
		zap.Int("services", len(reg.services)),
	)

	return nil
}

// RegisterType registers a type built by reflection. Constructors come from
// the type's ConstructorProvider table, from UsingConstructors, or are derived
// from the type's exported fields.
func (b *Builder) RegisterType(t reflect.Type, opts ...RegisterOption) (*Registration, error) {
	cfg := configure(opts)
	if cfg.err != nil {
		return nil, errors.WithMessagef(cfg.err, "register type %s", typeName(t))
	}

	activator, err := newConfiguredReflectionActivator(t, cfg, b.opts.finder)
	if err != nil {
		return nil, errors.WithMessagef(err, "register type %s", typeName(t))
	}

	return b.add(activator, cfg)
}

// RegisterTypeOf registers T built by reflection.
func RegisterTypeOf[T any](b *Builder, opts ...RegisterOption) (*Registration, error) {
	return b.RegisterType(typeOf[T](), opts...)
}

// RegisterInstance registers a pre-built instance. Instances are shared by the
// whole scope tree and, unless ExternallyOwned is given, disposed with the
// root scope.
func (b *Builder) RegisterInstance(instance any, opts ...RegisterOption) (*Registration, error) {
	activator, err := NewInstanceActivator(instance)
	if err != nil {
		return nil, errors.WithMessage(err, "register instance")
	}

	cfg := configure(append([]RegisterOption{SingleInstance()}, opts...))
	if cfg.err != nil {
		return nil, errors.WithMessagef(cfg.err, "register instance %T", instance)
	}

	cfg.sharing = SharingShared
	cfg.lifetime = LifetimeRootScope

	return b.add(activator, cfg)
}

// RegisterDelegate registers a component built by factory. limit is the most
// specific type the factory is known to return.
func (b *Builder) RegisterDelegate(limit reflect.Type, factory Factory, opts ...RegisterOption) (*Registration, error) {
	activator, err := NewDelegateActivator(limit, factory)
	if err != nil {
		return nil, errors.WithMessage(err, "register delegate")
	}

	cfg := configure(opts)
	if cfg.err != nil {
		return nil, errors.WithMessagef(cfg.err, "register delegate %s", typeName(limit))
	}

	return b.add(activator, cfg)
}

// RegisterFunc registers a component built by a typed factory.
//
// Example:
//
//	keel.RegisterFunc(b, func(ctx keel.ComponentContext) (*Cache, error) {
//	    db, err := keel.Resolve[*Database](ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewCache(db), nil
//	}, keel.InstancePerLifetimeScope())
func RegisterFunc[T any](b *Builder, fn func(ctx ComponentContext) (T, error), opts ...RegisterOption) (*Registration, error) {
	if fn == nil {
		return nil, NewArgumentError("factory", "cannot be nil")
	}

	return b.RegisterDelegate(typeOf[T](), func(ctx ComponentContext, _ []Parameter) (any, error) {
		return fn(ctx)
	}, opts...)
}

// RegisterGeneric registers an open generic type. Every instantiation of the
// definition can then be resolved; each closed type is its own component.
//
// Example:
//
//	b.RegisterGeneric(keel.GenericOf[*Repository[any]](), keel.SingleInstance())
//	users, err := keel.Resolve[*Repository[User]](scope)
func (b *Builder) RegisterGeneric(def GenericDefinition, opts ...RegisterOption) error {
	src, err := newOpenGenericSource(def, configure(opts), b.opts.finder)
	if err != nil {
		return errors.WithMessagef(err, "register generic %s", def)
	}

	if err := b.registry.AddRegistrationSource(src); err != nil {
		return err
	}

	b.opts.logger.Debug("generic component registered",
		zap.String("registration", string(src.id)),
		zap.Stringer("definition", def),
	)

	return nil
}

// AddRegistrationSource adds a source consulted for services without a direct
// registration.
func (b *Builder) AddRegistrationSource(src RegistrationSource) error {
	return b.registry.AddRegistrationSource(src)
}

// Build freezes the registrations and creates the container.
func (b *Builder) Build() (*Container, error) {
	if b.child {
		return nil, NewArgumentError("builder", "scope builders are built by BeginLifetimeScope")
	}

	if b.built {
		return nil, NewArgumentError("builder", "already built")
	}

	b.built = true
	b.registry.freeze()

	root := newLifetimeScope(nil, b.opts.tag, b.registry, b.opts)

	b.opts.logger.Debug("container built",
		zap.String("scope", root.id),
		zap.Int("registrations", len(b.registry.Registrations())),
	)

	return &Container{LifetimeScope: root}, nil
}

func (b *Builder) add(activator Activator, cfg *registrationConfig) (*Registration, error) {
	reg, err := newRegistration("", activator, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "register %s", typeName(activator.LimitType()))
	}

	if err := b.Register(reg); err != nil {
		return nil, err
	}

	return reg, nil
}

func configure(opts []RegisterOption) *registrationConfig {
	cfg := newRegistrationConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return cfg
}

// Container is the root lifetime scope of a built registry. Disposing the
// container disposes every scope and owned instance.
type Container struct {
	*LifetimeScope
}

var (
	lifetimeScopeType    = reflect.TypeOf((*LifetimeScope)(nil))
	componentContextType = reflect.TypeOf((*ComponentContext)(nil)).Elem()
)

// scopeSource lets components depend on the scope resolving them, either as
// *LifetimeScope or as ComponentContext.
type scopeSource struct{}

var scopeRegistration = func() *Registration {
	activator, _ := NewDelegateActivator(lifetimeScopeType, func(ctx ComponentContext, _ []Parameter) (any, error) {
		return ctx.Scope(), nil
	})

	cfg := newRegistrationConfig()
	cfg.services = []Service{{Type: lifetimeScopeType}, {Type: componentContextType}}
	cfg.ownership = OwnershipExternal

	reg, _ := newRegistration("keel.scope", activator, cfg)

	return reg
}()

// RegistrationsFor implements RegistrationSource.
func (scopeSource) RegistrationsFor(svc Service, _ func(Service) []*Registration) []*Registration {
	if svc.Key == "" && (svc.Type == lifetimeScopeType || svc.Type == componentContextType) {
		return []*Registration{scopeRegistration}
	}

	return nil
}

// IsAdapterForIndividualComponents implements RegistrationSource.
func (scopeSource) IsAdapterForIndividualComponents() bool {
	return false
}
