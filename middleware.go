package keel

import (
	"fmt"

	"go.uber.org/zap"
)

// Middleware provides hooks for intercepting resolution.
// Middleware can be used for logging, metrics, security, testing, etc.
type Middleware interface {
	// BeforeResolve is called before a scope resolves a service.
	// Return error to abort resolution.
	BeforeResolve(svc Service) error

	// AfterResolve is called after a scope resolved a service.
	// Called even if resolution failed (instance and err may both be set).
	AfterResolve(svc Service, instance any, err error) error

	// BeforeActivate is called before a component is built, including
	// components built as dependencies of another.
	BeforeActivate(reg *Registration) error

	// AfterActivate is called after a component was built or failed to build.
	AfterActivate(reg *Registration, instance any, err error) error
}

// middlewareChain manages multiple middleware.
type middlewareChain struct {
	middleware []Middleware
}

// newMiddlewareChain creates a new middleware chain.
func newMiddlewareChain(mw []Middleware) *middlewareChain {
	return &middlewareChain{
		middleware: append([]Middleware(nil), mw...),
	}
}

// beforeResolve calls BeforeResolve on all middleware.
func (m *middlewareChain) beforeResolve(svc Service) error {
	for _, mw := range m.middleware {
		if err := mw.BeforeResolve(svc); err != nil {
			return err
		}
	}

	return nil
}

// afterResolve calls AfterResolve on all middleware.
func (m *middlewareChain) afterResolve(svc Service, instance any, err error) error {
	for _, mw := range m.middleware {
		if mwErr := mw.AfterResolve(svc, instance, err); mwErr != nil {
			return mwErr
		}
	}

	return nil
}

// beforeActivate calls BeforeActivate on all middleware.
func (m *middlewareChain) beforeActivate(reg *Registration) error {
	for _, mw := range m.middleware {
		if err := mw.BeforeActivate(reg); err != nil {
			return err
		}
	}

	return nil
}

// afterActivate calls AfterActivate on all middleware.
func (m *middlewareChain) afterActivate(reg *Registration, instance any, err error) error {
	for _, mw := range m.middleware {
		if mwErr := mw.AfterActivate(reg, instance, err); mwErr != nil {
			return mwErr
		}
	}

	return nil
}

// FuncMiddleware wraps functions as Middleware.
type FuncMiddleware struct {
	BeforeResolveFunc  func(svc Service) error
	AfterResolveFunc   func(svc Service, instance any, err error) error
	BeforeActivateFunc func(reg *Registration) error
	AfterActivateFunc  func(reg *Registration, instance any, err error) error
}

// BeforeResolve implements Middleware.
func (f *FuncMiddleware) BeforeResolve(svc Service) error {
	if f.BeforeResolveFunc != nil {
		return f.BeforeResolveFunc(svc)
	}

	return nil
}

// AfterResolve implements Middleware.
func (f *FuncMiddleware) AfterResolve(svc Service, instance any, err error) error {
	if f.AfterResolveFunc != nil {
		return f.AfterResolveFunc(svc, instance, err)
	}

	return nil
}

// BeforeActivate implements Middleware.
func (f *FuncMiddleware) BeforeActivate(reg *Registration) error {
	if f.BeforeActivateFunc != nil {
		return f.BeforeActivateFunc(reg)
	}

	return nil
}

// AfterActivate implements Middleware.
func (f *FuncMiddleware) AfterActivate(reg *Registration, instance any, err error) error {
	if f.AfterActivateFunc != nil {
		return f.AfterActivateFunc(reg, instance, err)
	}

	return nil
}

// LoggingMiddleware logs every top-level resolution and every failed
// activation. Successful resolutions are logged at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FuncMiddleware{
		AfterResolveFunc: func(svc Service, instance any, err error) error {
			if err != nil {
				logger.Warn("resolve failed",
					zap.Stringer("service", svc),
					zap.Error(err),
				)

				return nil
			}

			logger.Debug("resolved",
				zap.Stringer("service", svc),
				zap.String("instance", fmt.Sprintf("%T", instance)),
			)

			return nil
		},
		AfterActivateFunc: func(reg *Registration, _ any, err error) error {
			if err != nil {
				logger.Warn("activation failed",
					zap.String("registration", string(reg.ID())),
					zap.String("type", typeName(reg.LimitType())),
					zap.Error(err),
				)
			}

			return nil
		},
	}
}
