// Package keel is a dependency-resolution runtime with hierarchical lifetime
// scopes.
//
// Components are described to a Builder, which freezes them into a Container.
// The container is the root of a tree of lifetime scopes. Resolving a service
// from a scope builds the component and its dependencies on demand, shares
// instances according to each registration's sharing and lifetime, detects
// circular dependencies, and tracks disposable instances so that disposing a
// scope disposes them in reverse creation order, child scopes first.
//
//	b := keel.NewBuilder()
//	keel.RegisterTypeOf[*Database](b, keel.SingleInstance())
//	keel.RegisterTypeOf[*UnitOfWork](b, keel.InstancePerLifetimeScope())
//
//	c, err := b.Build()
//	if err != nil {
//	    return err
//	}
//	defer c.Dispose()
//
//	request, err := c.BeginLifetimeScope()
//	if err != nil {
//	    return err
//	}
//	defer request.Dispose()
//
//	uow, err := keel.Resolve[*UnitOfWork](request)
//
// Types are built by reflection from a table of constructors: the type's
// Constructors method when it implements ConstructorProvider, the functions
// passed to UsingConstructors, or a constructor derived from its exported
// fields. The constructor with the most parameters that can all be supplied
// is used.
package keel
