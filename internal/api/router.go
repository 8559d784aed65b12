package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/api/handler"
	"github.com/inventaris/inventory-state/internal/api/middleware"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/core/store"
)

// RouterDeps is everything the inspector API serves from.
type RouterDeps struct {
	Stores *store.Stores
	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]ports.Pinger
	Logger    zerolog.Logger
	// Metrics mounts the Prometheus middleware and /metrics.
	Metrics bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	if d.Metrics {
		e.Use(echoprometheus.NewMiddleware("inventaris"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – is the backend reachable?

	session := d.Stores.Session
	requireAuth := middleware.RequireAuth(session)
	requireAdmin := middleware.RequireAdmin(session)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(session)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/me", authHandler.Me, requireAuth)
	e.PATCH("/auth/me", authHandler.UpdateMe, requireAuth)

	v1 := e.Group("/v1", requireAuth)

	// --- Rooms ---
	rooms := handler.NewRoomHandler(d.Stores.Rooms)
	v1.GET("/rooms", rooms.List)
	v1.GET("/rooms/:id", rooms.Get)
	v1.POST("/rooms", rooms.Create, requireAdmin)
	v1.PATCH("/rooms/:id", rooms.Update)
	v1.DELETE("/rooms/:id", rooms.Delete, requireAdmin)
	v1.DELETE("/rooms/sync-error", rooms.ClearSyncError)

	// --- Assets ---
	assets := handler.NewAssetHandler(d.Stores.Assets)
	v1.GET("/assets", assets.List)
	v1.GET("/assets/stats", assets.Stats)
	v1.GET("/assets/:id", assets.Get)
	v1.POST("/assets", assets.Create)
	v1.PATCH("/assets/:id", assets.Update)
	v1.DELETE("/assets/:id", assets.Delete)
	v1.DELETE("/assets/sync-error", assets.ClearSyncError)

	return e
}

// requestLogger logs one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
