// Package router wires handlers, middleware and route groups onto Echo.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/madeira/residential-services/internal/auth"
	"github.com/madeira/residential-services/internal/config"
	"github.com/madeira/residential-services/internal/handler"
	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// Handlers bundles every handler the router registers.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserAdminHandler
	Category *handler.CategoryHandler
	Provider *handler.ProviderHandler
	Review   *handler.ReviewHandler
	Favorite *handler.FavoriteHandler
	Audit    *handler.AuditHandler
	Health   *handler.HealthHandler
}

// New builds the Echo instance: global middleware first (device cookie,
// rate limiter, session gate), then the route groups. The session gate is
// registered globally; it classifies paths itself, so /auth, /healthz and
// /test-connection pass through without a session while everything else
// requires one.
func New(cfg config.Config, codec *auth.SessionCodec, rdb *redis.Client, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	e.Use(middleware.EnsureDeviceID(cfg.DeviceCookieDays, cfg.Env == "prod"))
	e.Use(middleware.RateLimit(rlCfg, rdb))
	e.Use(middleware.SessionGate(middleware.GateConfig{Codec: codec}))

	registerPublic(e, h)
	registerAuthenticated(e, cacheCfg, rdb, h)
	registerManage(e, h)
	registerAdmin(e, h)
	return e
}

// registerPublic maps the endpoints reachable without a session.
func registerPublic(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
	e.GET("/test-connection", h.Health.TestConnection)

	g := e.Group("/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	// Logout sits outside the gate so an expired session can still log out.
	g.POST("/logout", h.Auth.Logout)
}

// registerAuthenticated maps the resident-facing directory endpoints. All
// of them require a valid session; none require a specific permission.
func registerAuthenticated(e *echo.Echo, cacheCfg config.CacheConfig, rdb *redis.Client, h Handlers) {
	v1 := e.Group("/v1")

	v1.GET("/me", h.Auth.Me)
	v1.POST("/auth/logout-all", h.Auth.LogoutAll)
	v1.GET("/me/devices", h.Auth.Devices)
	v1.DELETE("/me/devices/:id", h.Auth.RevokeDevice)
	v1.GET("/me/activity", h.Audit.ListMine)
	v1.GET("/me/favorites", h.Favorite.List)

	// Browse endpoints carry the response cache; writes bypass it.
	cached := middleware.ResponseCache(cacheCfg, rdb)
	v1.GET("/categories", h.Category.List, cached)
	v1.GET("/categories/:id", h.Category.Get)
	v1.GET("/providers", h.Provider.List, cached)
	v1.GET("/providers/:id", h.Provider.Get)
	v1.GET("/providers/:id/reviews", h.Review.ListByProvider)

	v1.POST("/providers/suggest", h.Provider.Suggest)
	v1.POST("/providers/:id/favorite", h.Favorite.Toggle)
	v1.POST("/providers/:id/reviews", h.Review.Upsert)
	v1.DELETE("/reviews/:id", h.Review.Delete)
}

// registerManage maps content management, gated per route by permission
// code rather than by role so custom role grants work without code changes.
func registerManage(e *echo.Echo, h Handlers) {
	m := e.Group("/v1/manage")

	cats := middleware.RequirePermission(repository.PermManageCategories)
	m.POST("/categories", h.Category.Create, cats)
	m.PUT("/categories/:id", h.Category.Update, cats)
	m.DELETE("/categories/:id", h.Category.Delete, cats)

	provs := middleware.RequirePermission(repository.PermManageProviders)
	m.POST("/providers", h.Provider.Create, provs)
	m.PUT("/providers/:id", h.Provider.Update, provs)
	m.DELETE("/providers/:id", h.Provider.Delete, provs)
	m.PATCH("/providers/:id/status", h.Provider.SetStatus,
		middleware.RequirePermission(repository.PermApproveProviders))

	m.PATCH("/reviews/:id/status", h.Review.SetStatus, provs)
}

// registerAdmin maps user administration. The session gate already narrows
// /v1/admin to the admin role; the permission middleware narrows further.
func registerAdmin(e *echo.Echo, h Handlers) {
	a := e.Group("/v1/admin")

	manage := middleware.RequirePermission(repository.PermManageUsers)
	approve := middleware.RequirePermission(repository.PermApproveUsers)

	a.GET("/users", h.Users.List, manage)
	a.PATCH("/users/:id/approve", h.Users.Approve, approve)
	a.PATCH("/users/:id/deactivate", h.Users.Deactivate, manage)
	a.PATCH("/users/:id/reactivate", h.Users.Reactivate, manage)
	a.PATCH("/users/:id/role", h.Users.ChangeRole, manage)
	a.DELETE("/users/:id", h.Users.Delete, manage)

	a.GET("/roles", h.Users.ListRoles, manage)
	a.GET("/permissions", h.Users.ListPermissions, manage)
	a.POST("/roles/:id/permissions", h.Users.GrantPermission, manage)
	a.DELETE("/roles/:id/permissions/:permissionId", h.Users.RevokePermission, manage)

	a.GET("/users/:id/activity", h.Audit.ListForUser,
		middleware.RequirePermission(repository.PermViewReports))
}
