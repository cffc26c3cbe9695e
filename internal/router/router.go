// Package router maps the HTTP surface onto handlers and wraps route
// groups in the session, role, cache and rate-limit middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lab-key-reservation/internal/config"
	"github.com/iliyamo/lab-key-reservation/internal/handler"
	"github.com/iliyamo/lab-key-reservation/internal/middleware"
	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Browse      *handler.BrowseHandler
	Reservation *handler.ReservationHandler
	Custody     *handler.CustodyHandler
	Kiosk       *handler.KioskHandler
	Admin       *handler.AdminHandler
}

// Register mounts the full route tree. rdb may be nil, in which case
// the cache and rate-limit middleware are skipped (tests do this).
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var limiter, cached echo.MiddlewareFunc
	if rdb != nil {
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cached = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	// Public browse endpoints; cacheable, no session.
	browse := e.Group("/v1")
	if cached != nil {
		browse.Use(cached)
	}
	browse.GET("/slots", h.Browse.Slots)
	browse.GET("/rooms", h.Browse.ListRooms)
	browse.GET("/rooms/:id/availability", h.Browse.Availability)

	// Session endpoints.
	auth := e.Group("/v1/auth")
	if limiter != nil {
		auth.Use(limiter)
	}
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	session := e.Group("/v1/auth")
	session.Use(middleware.JWTAuth(cfg.JWTSecret))
	session.POST("/logout", h.Auth.Logout)
	session.GET("/me", h.Auth.Me)
	session.POST("/identity-token", h.Auth.IdentityToken)

	// Reservation lifecycle; any authenticated role.
	res := e.Group("/v1/reservations")
	res.Use(middleware.JWTAuth(cfg.JWTSecret))
	res.Use(middleware.RequireRole(model.RoleStudent, model.RoleStaff, model.RoleAdmin))
	res.POST("", h.Reservation.Create)
	res.GET("", h.Reservation.ListMine)
	res.GET("/:id", h.Reservation.Get)
	res.DELETE("/:id", h.Reservation.Cancel)
	res.GET("/:id/participants", h.Reservation.ListParticipants)
	res.POST("/:id/participants", h.Reservation.AddParticipant)
	res.DELETE("/:id/participants/:userId", h.Reservation.RemoveParticipant)

	// Staff surface: decisions and the desk custody flow.
	staff := e.Group("/v1/reservations")
	staff.Use(middleware.JWTAuth(cfg.JWTSecret))
	staff.Use(middleware.RequireRole(model.RoleStaff, model.RoleAdmin))
	staff.GET("/pending", h.Reservation.ListPending)
	staff.POST("/:id/decision", h.Reservation.Decide)
	staff.POST("/:id/pickup", h.Custody.Pickup)
	staff.POST("/:id/return", h.Custody.Return)
	staff.POST("/:id/access-tokens", h.Custody.IssueAccessToken)

	// Kiosk: the single-use secret is the whole credential.
	kiosk := e.Group("/v1/kiosk")
	if limiter != nil {
		kiosk.Use(limiter)
	}
	kiosk.POST("/pickup", h.Kiosk.Pickup)
	kiosk.POST("/return", h.Kiosk.Return)

	// Admin surface.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/rooms", h.Admin.CreateRoom)
	admin.PATCH("/rooms/:id", h.Admin.UpdateRoom)
	admin.POST("/rooms/:id/keys", h.Admin.CreateKey)
	admin.GET("/rooms/:id/keys", h.Admin.ListKeys)
	admin.PATCH("/keys/:keyId", h.Admin.SetKeyStatus)
	admin.POST("/class-reservations", h.Admin.GenerateClassReservations)
	admin.DELETE("/class-reservations/:sectionId", h.Admin.ClearClassReservations)
	admin.POST("/sweep", h.Admin.Sweep)
}
