package keel

import (
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// RootTag is the tag of the root lifetime scope unless WithRootTag overrides it.
const RootTag = "root"

// Disposable is implemented by components that release resources when their
// owning lifetime scope is disposed. Components implementing io.Closer are
// disposed through Close.
type Disposable interface {
	Dispose() error
}

var scopeSeq atomic.Uint64

// slot holds the shared instance of one registration in one scope. Each slot
// has its own lock so unrelated registrations never contend.
type slot struct {
	mu       sync.Mutex
	ready    atomic.Bool
	instance any
}

// LifetimeScope is a node in the scope tree. It caches shared instances it
// owns and disposes the disposable instances it owns, children first, when it
// is disposed. A LifetimeScope is safe for concurrent use.
type LifetimeScope struct {
	id       string
	tag      string
	parent   *LifetimeScope
	root     *LifetimeScope
	registry *Registry

	logger     *zap.Logger
	middleware *middlewareChain
	finder     ConstructorFinder

	slotsMu sync.Mutex
	slots   map[ID]*slot

	disposeMu   sync.Mutex
	disposables []any

	childMu  sync.Mutex
	children []*LifetimeScope

	disposed atomic.Bool
}

func newLifetimeScope(parent *LifetimeScope, tag string, registry *Registry, o *options) *LifetimeScope {
	s := &LifetimeScope{
		id:         "scope-" + strconv.FormatUint(scopeSeq.Add(1), 10),
		tag:        tag,
		parent:     parent,
		registry:   registry,
		logger:     o.logger,
		middleware: newMiddlewareChain(o.middleware),
		finder:     o.finder,
		slots:      make(map[ID]*slot),
	}

	if parent == nil {
		s.root = s
	} else {
		s.root = parent.root
	}

	return s
}

// ID returns the process-unique id of the scope.
func (s *LifetimeScope) ID() string { return s.id }

// Tag returns the tag given when the scope was created.
func (s *LifetimeScope) Tag() string { return s.tag }

// Parent returns the enclosing scope, or nil for the root.
func (s *LifetimeScope) Parent() *LifetimeScope { return s.parent }

// Root returns the root of the scope tree.
func (s *LifetimeScope) Root() *LifetimeScope { return s.root }

// Registry returns the registrations visible to the scope.
func (s *LifetimeScope) Registry() *Registry { return s.registry }

// IsDisposed reports whether Dispose has been called.
func (s *LifetimeScope) IsDisposed() bool { return s.disposed.Load() }

// Scope implements ComponentContext.
func (s *LifetimeScope) Scope() *LifetimeScope { return s }

// ResolveService resolves the default registration of svc.
func (s *LifetimeScope) ResolveService(svc Service, params ...Parameter) (any, error) {
	if s.IsDisposed() {
		return nil, NewScopeDisposedError(s.id)
	}

	if svc.Type == nil {
		return nil, NewArgumentError("service", "service type cannot be nil")
	}

	if err := s.middleware.beforeResolve(svc); err != nil {
		return nil, err
	}

	instance, err := newOperation(s).resolveService(s, svc, params)

	if mwErr := s.middleware.afterResolve(svc, instance, err); mwErr != nil {
		return nil, mwErr
	}

	return instance, err
}

// TryResolveService resolves svc, returning (nil, false, nil) when it is not
// registered. Failures of a registered service are still returned.
func (s *LifetimeScope) TryResolveService(svc Service, params ...Parameter) (any, bool, error) {
	if s.IsDisposed() {
		return nil, false, NewScopeDisposedError(s.id)
	}

	if !s.registry.IsRegistered(svc) {
		return nil, false, nil
	}

	instance, err := s.ResolveService(svc, params...)
	if err != nil {
		return nil, false, err
	}

	return instance, true, nil
}

// ResolveAll resolves every registration of svc in registration order. An
// unregistered service yields an empty slice.
func (s *LifetimeScope) ResolveAll(svc Service, params ...Parameter) ([]any, error) {
	if s.IsDisposed() {
		return nil, NewScopeDisposedError(s.id)
	}

	return newOperation(s).resolveAll(s, svc, params)
}

// ResolveComponent resolves a specific registration, which need not be
// visible to the scope's registry.
func (s *LifetimeScope) ResolveComponent(reg *Registration, params ...Parameter) (any, error) {
	if s.IsDisposed() {
		return nil, NewScopeDisposedError(s.id)
	}

	return newOperation(s).resolveComponent(s, reg, params)
}

// IsRegistered reports whether svc has at least one registration.
func (s *LifetimeScope) IsRegistered(svc Service) bool {
	return s.registry.IsRegistered(svc)
}

// BeginLifetimeScope creates a child scope. Each configure function may add
// registrations visible only to the child and its descendants; they take
// precedence over the parent's registrations for the same services.
//
// Example:
//
//	child, err := scope.BeginLifetimeScope(func(b *keel.Builder) error {
//	    _, err := b.RegisterInstance(request)
//	    return err
//	})
//	defer child.Dispose()
func (s *LifetimeScope) BeginLifetimeScope(configure ...func(*Builder) error) (*LifetimeScope, error) {
	return s.BeginTaggedLifetimeScope("", configure...)
}

// BeginTaggedLifetimeScope is BeginLifetimeScope with a tag for the child.
func (s *LifetimeScope) BeginTaggedLifetimeScope(tag string, configure ...func(*Builder) error) (*LifetimeScope, error) {
	if s.IsDisposed() {
		return nil, NewScopeDisposedError(s.id)
	}

	registry := s.registry
	if len(configure) > 0 {
		b := newChildBuilder(s)
		for _, fn := range configure {
			if fn == nil {
				continue
			}

			if err := fn(b); err != nil {
				return nil, err
			}
		}

		b.registry.freeze()
		registry = b.registry
	}

	child := newLifetimeScope(s, tag, registry, &options{
		logger:     s.logger,
		middleware: s.middleware.middleware,
		finder:     s.finder,
	})

	s.childMu.Lock()
	if s.IsDisposed() {
		s.childMu.Unlock()

		return nil, NewScopeDisposedError(s.id)
	}

	s.children = append(s.children, child)
	s.childMu.Unlock()

	s.logger.Debug("lifetime scope started",
		zap.String("scope", child.id),
		zap.String("parent", s.id),
		zap.String("tag", tag),
	)

	return child, nil
}

// Dispose disposes every child scope, then every owned disposable instance
// in reverse creation order, and detaches the scope from its parent. All
// disposals are attempted; failures are combined into one error. Calling
// Dispose again does nothing.
func (s *LifetimeScope) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	s.childMu.Lock()
	children := s.children
	s.children = nil
	s.childMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(); err != nil {
			if nested := DisposalErrors(err); len(nested) > 0 {
				errs = append(errs, nested...)
			} else {
				errs = append(errs, err)
			}
		}
	}

	s.disposeMu.Lock()
	owned := s.disposables
	s.disposables = nil
	s.disposeMu.Unlock()

	for i := len(owned) - 1; i >= 0; i-- {
		if err := dispose(owned[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	if len(errs) > 0 {
		err := NewDisposalError(s.id, errs)
		s.logger.Warn("lifetime scope disposed with errors",
			zap.String("scope", s.id),
			zap.Error(err),
		)

		return err
	}

	s.logger.Debug("lifetime scope disposed",
		zap.String("scope", s.id),
		zap.Int("instances", len(owned)),
	)

	return nil
}

func (s *LifetimeScope) removeChild(child *LifetimeScope) {
	s.childMu.Lock()
	defer s.childMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)

			return
		}
	}
}

// track records an instance for disposal with the scope.
func (s *LifetimeScope) track(instance any) {
	if !isDisposable(instance) {
		return
	}

	s.disposeMu.Lock()
	if !s.disposed.Load() {
		s.disposables = append(s.disposables, instance)
		s.disposeMu.Unlock()

		return
	}
	s.disposeMu.Unlock()

	// The scope was disposed while the instance was being built.
	if err := dispose(instance); err != nil {
		s.logger.Warn("disposing instance created during scope disposal",
			zap.String("scope", s.id),
			zap.Error(err),
		)
	}
}

// rootFor returns the scope owning single instances of reg: the scope that
// added reg as a scope-local registration, or the root.
func (s *LifetimeScope) rootFor(reg *Registration) *LifetimeScope {
	for c := s; c.parent != nil; c = c.parent {
		if c.registry != c.parent.registry && c.registry.declares(reg) {
			return c
		}
	}

	return s.root
}

func (s *LifetimeScope) slot(id ID) *slot {
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{}
		s.slots[id] = sl
	}

	return sl
}

// sharedInstance returns the published instance of registration id, if any.
func (s *LifetimeScope) sharedInstance(id ID) (any, bool) {
	s.slotsMu.Lock()
	sl, ok := s.slots[id]
	s.slotsMu.Unlock()

	if !ok || !sl.ready.Load() {
		return nil, false
	}

	return sl.instance, true
}

func isDisposable(instance any) bool {
	switch instance.(type) {
	case Disposable, io.Closer:
		return true
	default:
		return false
	}
}

func dispose(instance any) error {
	switch d := instance.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	default:
		return nil
	}
}
