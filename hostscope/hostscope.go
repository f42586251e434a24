// Package hostscope ties keel lifetime scopes to units of work in a host,
// such as HTTP requests served by a chi router.
package hostscope

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xraph/keel"
)

// RequestTag is the tag of scopes created by Middleware.
const RequestTag = "request"

// InstanceProvider resolves a root service inside a dedicated child scope and
// disposes that scope on release.
type InstanceProvider struct {
	parent *keel.LifetimeScope
	tag    string
}

// NewInstanceProvider creates a provider whose scopes are children of parent.
func NewInstanceProvider(parent *keel.LifetimeScope, tag string) *InstanceProvider {
	return &InstanceProvider{parent: parent, tag: tag}
}

// Acquire begins a child scope and resolves svc in it. The returned release
// function disposes the scope; it is safe to call more than once. When
// resolution fails the scope is disposed before Acquire returns.
func (p *InstanceProvider) Acquire(svc keel.Service, configure ...func(*keel.Builder) error) (any, func() error, error) {
	scope, err := p.parent.BeginTaggedLifetimeScope(p.tag, configure...)
	if err != nil {
		return nil, nil, err
	}

	instance, err := scope.ResolveService(svc)
	if err != nil {
		return nil, nil, multierr.Append(err, scope.Dispose())
	}

	return instance, scope.Dispose, nil
}

// RequestInfo describes the request a scope was created for. It is registered
// in every request scope.
type RequestInfo struct {
	ID     string
	Method string
	Path   string
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope *keel.LifetimeScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the request scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *keel.LifetimeScope {
	scope, _ := ctx.Value(scopeKey{}).(*keel.LifetimeScope)

	return scope
}

// Option configures Middleware.
type Option func(*config)

type config struct {
	logger    *zap.Logger
	configure []func(r *http.Request, b *keel.Builder) error
}

// WithLogger sets the logger used to report scope failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistrations adds scope-local registrations to every request scope.
func WithRegistrations(fn func(r *http.Request, b *keel.Builder) error) Option {
	return func(c *config) {
		c.configure = append(c.configure, fn)
	}
}

// Middleware begins a lifetime scope for every request and disposes it when
// the handler returns. The scope carries a RequestInfo built from the chi
// request id, method and path; handlers reach it through ScopeFrom.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(hostscope.Middleware(container.LifetimeScope))
func Middleware(root *keel.LifetimeScope, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := RequestInfo{
				ID:     middleware.GetReqID(r.Context()),
				Method: r.Method,
				Path:   r.URL.Path,
			}

			scope, err := root.BeginTaggedLifetimeScope(RequestTag, func(b *keel.Builder) error {
				if _, err := b.RegisterInstance(info, keel.ExternallyOwned()); err != nil {
					return err
				}

				for _, fn := range cfg.configure {
					if err := fn(r, b); err != nil {
						return err
					}
				}

				return nil
			})
			if err != nil {
				cfg.logger.Error("begin request scope", zap.String("request_id", info.ID), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			defer func() {
				if err := scope.Dispose(); err != nil {
					cfg.logger.Warn("dispose request scope",
						zap.String("request_id", info.ID),
						zap.String("scope", scope.ID()),
						zap.Error(err),
					)
				}
			}()

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// Handler serves each request with the http.Handler resolved for svc from
// the request scope.
func Handler(svc keel.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := ScopeFrom(r.Context())
		if scope == nil {
			http.Error(w, "no request scope", http.StatusInternalServerError)

			return
		}

		h, err := keel.ResolveAs[http.Handler](scope, svc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		h.ServeHTTP(w, r)
	})
}
