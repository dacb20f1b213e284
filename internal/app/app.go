// Package app wires the q-profile-vending service: users, the live event
// stream, the session gate and the dashboard on one HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/qprofile/auth"
	"github.com/kbukum/qprofile/bootstrap"
	"github.com/kbukum/qprofile/internal/dashboard"
	"github.com/kbukum/qprofile/internal/user"
	"github.com/kbukum/qprofile/observability"
	"github.com/kbukum/qprofile/resilience"
	"github.com/kbukum/qprofile/server"
	"github.com/kbukum/qprofile/server/middleware"
	"github.com/kbukum/qprofile/sse"
)

// App is the assembled service.
type App struct {
	Base   *bootstrap.App[*Config]
	Server *server.Server
	Events *sse.Component
	Users  *user.Service
	Auth   *auth.Authenticator

	loginLimiter *resilience.KeyedRateLimiter
	stopPrune    chan struct{}
}

// New builds the service from cfg. Nothing listens until Run.
func New(cfg *Config, opts ...bootstrap.Option) (*App, error) {
	base, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}

	authn, err := auth.New(cfg.Auth)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics(observability.Meter(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store, err := user.NewStore()
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}

	events := sse.NewComponent(cfg.SSE)
	a := &App{
		Base:   base,
		Server: server.New(cfg.Server, base.Logger),
		Events: events,
		Users:  user.NewService(store, events.Publisher(), metrics),
		Auth:   authn,
		loginLimiter: resilience.NewKeyedRateLimiter(resilience.RateLimiterConfig{
			Name:  "login",
			Rate:  cfg.LoginLimit.Rate(),
			Burst: cfg.LoginLimit.Attempts,
		}),
		stopPrune: make(chan struct{}),
	}

	if err := a.routes(metrics); err != nil {
		return nil, err
	}

	// Streams must end before the server drains, so the event component is
	// registered last and stopped first.
	if err := base.RegisterComponent(observability.NewComponent(cfg.Observability, observability.ServiceInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	})); err != nil {
		return nil, err
	}
	if err := base.RegisterComponent(server.NewComponent(a.Server)); err != nil {
		return nil, err
	}
	if err := base.RegisterComponent(events); err != nil {
		return nil, err
	}

	base.OnStart(a.startPruning)
	base.OnStop(a.stopPruning)
	return a, nil
}

// routes mounts every endpoint on the server's gin engine.
func (a *App) routes(metrics *observability.Metrics) error {
	cfg := a.Base.Cfg
	a.Server.ApplyDefaults(ServiceName, a.Base.Components.HealthAll)

	engine := a.Server.GinEngine()
	engine.Use(middleware.Metrics(metrics))

	guard := middleware.Session(a.Auth, middleware.SessionConfig{LoginPath: "/login"})
	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:           a.loginLimiter,
		RetryAfterSeconds: int(cfg.LoginLimit.Window.Seconds()),
	})

	pages, err := dashboard.New(a.Auth, cfg.Server.SecureCookies)
	if err != nil {
		return err
	}
	pages.Register(engine, guard, loginLimit)

	engine.GET(cfg.SSE.Path, guard, gin.WrapH(a.Events.Handler()))
	engine.GET("/api/streams", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Events.Status())
	})

	api := engine.Group("/api/users", guard)
	user.NewHandler(a.Users).Register(api)
	return nil
}

// Run serves until ctx is canceled or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	return a.Base.Run(ctx)
}

func (a *App) startPruning(context.Context) error {
	interval := a.Base.Cfg.LoginLimit.PruneInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopPrune:
				return
			case <-ticker.C:
				a.loginLimiter.Prune()
			}
		}
	}()
	return nil
}

func (a *App) stopPruning(context.Context) error {
	close(a.stopPrune)
	return nil
}
