// Command keel-demo serves a small HTTP API whose handlers are resolved from a
// keel request scope.
package main

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xraph/keel"
	"github.com/xraph/keel/hostscope"
)

// Counter counts requests across the whole process.
type Counter struct {
	n atomic.Int64
}

// Next increments and returns the count.
func (c *Counter) Next() int64 { return c.n.Add(1) }

// Greeter builds the greeting for one request.
type Greeter struct {
	Request hostscope.RequestInfo
	Counter *Counter
}

// Constructors implements keel.ConstructorProvider.
func (*Greeter) Constructors() []keel.Constructor {
	return []keel.Constructor{
		keel.Ctor(func(req hostscope.RequestInfo, counter *Counter) *Greeter {
			return &Greeter{Request: req, Counter: counter}
		}, "request", "counter"),
	}
}

// GreetHandler answers GET /hello.
type GreetHandler struct {
	Greeter *Greeter
}

func (h *GreetHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message":    "hello from keel",
		"request_id": h.Greeter.Request.ID,
		"count":      h.Greeter.Counter.Next(),
	})
}

func buildContainer(logger *zap.Logger) (*keel.Container, error) {
	b := keel.NewBuilder(
		keel.WithLogger(logger),
		keel.WithMiddleware(keel.LoggingMiddleware(logger)),
	)

	if _, err := keel.RegisterTypeOf[*Counter](b, keel.SingleInstance()); err != nil {
		return nil, err
	}

	if _, err := keel.RegisterTypeOf[*Greeter](b, keel.InstancePerLifetimeScope()); err != nil {
		return nil, err
	}

	if _, err := keel.RegisterTypeOf[*GreetHandler](b, keel.AsNamed[http.Handler]("hello")); err != nil {
		return nil, err
	}

	return b.Build()
}

func newRouter(c *keel.Container, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hostscope.Middleware(c.LifetimeScope, hostscope.WithLogger(logger)))

	r.Method(http.MethodGet, "/hello", hostscope.Handler(keel.ServiceOf[http.Handler]("hello")))

	return r
}

func main() {
	cfg := LoadConfig()

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := buildContainer(logger)
	if err != nil {
		logger.Fatal("build container", zap.Error(err))
	}
	defer func() {
		if err := c.Dispose(); err != nil {
			logger.Warn("dispose container", zap.Error(err))
		}
	}()

	r := newRouter(c, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))

	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
