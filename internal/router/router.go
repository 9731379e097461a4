package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/config"
	"github.com/cvewatch/cve-dashboard/internal/handler"
	"github.com/cvewatch/cve-dashboard/internal/middleware"
	"github.com/cvewatch/cve-dashboard/internal/session"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Saved     *handler.SavedHandler
	Chat      *handler.ChatHandler
}

// Deps are the cross-cutting pieces the route middleware needs.
type Deps struct {
	Sessions  *session.Manager
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *zap.Logger
}

// RegisterRoutes registers the health check outside /api.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
}

// RegisterAuth registers the account endpoints.  None of them require a
// session; check-session reports whether one exists.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/api")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.GET("/check-session", a.CheckSession)
}

// RegisterAPI registers the data endpoints behind the session gate.  The
// aggregate views are the same for every user and are cached; the chatbot
// is rate limited per user.
func RegisterAPI(e *echo.Echo, h Handlers, d Deps) {
	g := e.Group("/api", middleware.RequireSession(d.Sessions, d.Log))

	cache := middleware.ResponseCache(d.Cache, d.Redis, d.Log)
	g.GET("/stats", h.Dashboard.GetStats, cache)
	g.GET("/filter-options", h.Dashboard.GetFilterOptions, cache)
	g.GET("/alerts", h.Dashboard.GetAlerts)

	g.POST("/save-vulnerability", h.Saved.Save)
	g.GET("/saved-vulnerabilities", h.Saved.List)
	g.POST("/delete-saved", h.Saved.Delete)

	g.POST("/chatbot", h.Chat.Chat, middleware.RateLimit(d.RateLimit, d.Redis, d.Log))
}

// New builds the Echo instance with the global middleware and every route.
func New(h Handlers, d Deps, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			d.Log.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORSWithConfig(corsConfig(corsOrigins)))

	RegisterRoutes(e, h)
	RegisterAuth(e, h.Auth)
	RegisterAPI(e, h, d)
	return e
}

// corsConfig allows credentials only for an explicit origin list.  Browsers
// drop credentialed responses that carry a wildcard origin.
func corsConfig(origins []string) echomw.CORSConfig {
	cfg := echomw.CORSConfig{AllowOrigins: origins, AllowCredentials: len(origins) > 0}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowCredentials = false
		}
	}
	return cfg
}
