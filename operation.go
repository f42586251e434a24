package keel

import (
	"reflect"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ComponentContext resolves dependencies while a component is being built.
// Activators, factories, parameters and lifecycle handlers receive one bound
// to the resolution in progress, so nested resolves take part in circular
// dependency detection. A *LifetimeScope is also a ComponentContext that
// starts a new resolution on every call.
type ComponentContext interface {
	// ResolveService resolves the default registration of svc.
	ResolveService(svc Service, params ...Parameter) (any, error)

	// TryResolveService is ResolveService that reports an unregistered service
	// as (nil, false, nil) instead of an error.
	TryResolveService(svc Service, params ...Parameter) (any, bool, error)

	// ResolveAll resolves every registration of svc in registration order.
	ResolveAll(svc Service, params ...Parameter) ([]any, error)

	// ResolveComponent resolves a specific registration.
	ResolveComponent(reg *Registration, params ...Parameter) (any, error)

	// IsRegistered reports whether svc has at least one registration.
	IsRegistered(svc Service) bool

	// Scope returns the lifetime scope resolution happens in.
	Scope() *LifetimeScope
}

// operation is one top-level resolve call. It tracks the registrations being
// activated so that re-entering one is reported as a circular dependency.
// An operation belongs to the goroutine that started it.
type operation struct {
	origin *LifetimeScope
	stack  []*Registration
	depth  atomic.Int32
}

func newOperation(origin *LifetimeScope) *operation {
	return &operation{origin: origin}
}

func (op *operation) resolveService(scope *LifetimeScope, svc Service, params []Parameter) (any, error) {
	regs := scope.registry.Lookup(svc)
	if len(regs) == 0 {
		return nil, NewServiceNotRegisteredError(svc)
	}

	return op.resolveAs(scope, svc, regs[len(regs)-1], params)
}

func (op *operation) resolveAll(scope *LifetimeScope, svc Service, params []Parameter) ([]any, error) {
	regs := scope.registry.Lookup(svc)

	out := make([]any, 0, len(regs))
	for _, reg := range regs {
		instance, err := op.resolveAs(scope, svc, reg, params)
		if err != nil {
			return nil, err
		}

		out = append(out, instance)
	}

	return out, nil
}

// resolveAs resolves reg and checks the instance satisfies svc.
func (op *operation) resolveAs(scope *LifetimeScope, svc Service, reg *Registration, params []Parameter) (any, error) {
	instance, err := op.resolveComponent(scope, reg, params)
	if err != nil {
		return nil, err
	}

	if !instanceOf(instance, svc.Type) {
		return nil, NewTypeMismatchError(svc, instance)
	}

	return instance, nil
}

func (op *operation) resolveComponent(scope *LifetimeScope, reg *Registration, params []Parameter) (any, error) {
	if reg == nil {
		return nil, NewArgumentError("registration", "cannot be nil")
	}

	if scope.IsDisposed() {
		return nil, NewScopeDisposedError(scope.id)
	}

	for i, active := range op.stack {
		if active.id == reg.id {
			chain := append(append([]*Registration(nil), op.stack[i:]...), reg)

			return nil, NewCircularDependencyError(chain)
		}
	}

	if reg.sharing == SharingShared {
		return op.resolveShared(scope, reg, params)
	}

	instance, used, err := op.activate(scope, reg, params)
	if err != nil {
		return nil, err
	}

	return op.activated(scope, reg, used, instance)
}

func (op *operation) resolveShared(scope *LifetimeScope, reg *Registration, params []Parameter) (any, error) {
	owner := scope
	if reg.lifetime == LifetimeRootScope {
		owner = scope.rootFor(reg)
	} else {
		for s := scope; s != nil; s = s.parent {
			if instance, ok := s.sharedInstance(reg.id); ok {
				return instance, nil
			}
		}
	}

	sl := owner.slot(reg.id)
	if sl.ready.Load() {
		return sl.instance, nil
	}

	sl.mu.Lock()

	if sl.ready.Load() {
		sl.mu.Unlock()

		return sl.instance, nil
	}

	instance, used, err := op.activate(owner, reg, params)
	if err != nil {
		sl.mu.Unlock()

		return nil, err
	}

	sl.instance = instance
	sl.ready.Store(true)
	sl.mu.Unlock()

	return op.activated(owner, reg, used, instance)
}

// activate runs the preparing handlers, the activator and the activating
// handlers with reg on the activation stack. It returns the instance and the
// parameters it was built with.
func (op *operation) activate(scope *LifetimeScope, reg *Registration, params []Parameter) (instance any, used []Parameter, err error) {
	op.stack = append(op.stack, reg)
	op.depth.Add(1)

	defer func() {
		op.stack = op.stack[:len(op.stack)-1]
		op.depth.Add(-1)
	}()

	if err := scope.middleware.beforeActivate(reg); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	ctx := &resolveContext{op: op, scope: scope}

	defer func() {
		if mwErr := scope.middleware.afterActivate(reg, instance, err); mwErr != nil && err == nil {
			instance, err = nil, mwErr
		}
	}()

	preparing := &PreparingEvent{Context: ctx, Registration: reg, Parameters: params}
	for _, h := range reg.preparing {
		if err := h(preparing); err != nil {
			return nil, nil, activationFailure(reg, err)
		}
	}

	instance = preparing.Instance
	if instance == nil {
		instance, err = reg.activator.Activate(ctx, preparing.Parameters)
		if err != nil {
			return nil, nil, activationFailure(reg, err)
		}
	}

	activating := &ActivatingEvent{Context: ctx, Registration: reg, Parameters: preparing.Parameters, Instance: instance}
	for _, h := range reg.activating {
		if err := h(activating); err != nil {
			return nil, nil, activationFailure(reg, err)
		}
	}

	instance = activating.Instance

	if reg.ownership == OwnershipOwned {
		scope.track(instance)
	}

	scope.logger.Debug("component activated",
		zap.String("registration", string(reg.id)),
		zap.String("type", typeName(reg.LimitType())),
		zap.String("scope", scope.id),
		zap.Duration("duration", time.Since(start)),
	)

	return instance, preparing.Parameters, nil
}

// activating reports whether a component is being built by op.
func (op *operation) activating() bool {
	return op.depth.Load() > 0
}

// activated fires the activated handlers once the instance is complete.
func (op *operation) activated(scope *LifetimeScope, reg *Registration, params []Parameter, instance any) (any, error) {
	if len(reg.activated) == 0 {
		return instance, nil
	}

	e := &ActivatedEvent{
		Context:      &resolveContext{op: op, scope: scope},
		Registration: reg,
		Parameters:   params,
		Instance:     instance,
	}

	for _, h := range reg.activated {
		if err := h(e); err != nil {
			return nil, activationFailure(reg, err)
		}
	}

	return instance, nil
}

// activationFailure wraps errors from user code. Errors raised by nested
// resolution already describe the failure and pass through.
func activationFailure(reg *Registration, err error) error {
	if isKeelError(err) {
		return err
	}

	return NewActivationError(reg, err)
}

func instanceOf(instance any, t reflect.Type) bool {
	if t == nil || instance == nil {
		return true
	}

	return reflect.TypeOf(instance).AssignableTo(t)
}

// resolveContext is the ComponentContext handed to activators while an
// operation is in progress.
type resolveContext struct {
	op    *operation
	scope *LifetimeScope
}

func (c *resolveContext) ResolveService(svc Service, params ...Parameter) (any, error) {
	return c.op.resolveService(c.scope, svc, params)
}

func (c *resolveContext) TryResolveService(svc Service, params ...Parameter) (any, bool, error) {
	if !c.scope.registry.IsRegistered(svc) {
		return nil, false, nil
	}

	instance, err := c.op.resolveService(c.scope, svc, params)
	if err != nil {
		return nil, false, err
	}

	return instance, true, nil
}

func (c *resolveContext) ResolveAll(svc Service, params ...Parameter) ([]any, error) {
	return c.op.resolveAll(c.scope, svc, params)
}

func (c *resolveContext) ResolveComponent(reg *Registration, params ...Parameter) (any, error) {
	return c.op.resolveComponent(c.scope, reg, params)
}

func (c *resolveContext) IsRegistered(svc Service) bool {
	return c.scope.registry.IsRegistered(svc)
}

func (c *resolveContext) Scope() *LifetimeScope {
	return c.scope
}
