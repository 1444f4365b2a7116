package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/tutorlab/session-guard/docs"
	"github.com/tutorlab/session-guard/internal/api/handler"
	"github.com/tutorlab/session-guard/internal/api/middleware"
	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Guard      ports.GuardService
	Dispatcher handler.EventDispatcher
	Tokens     middleware.TokenVerifier
	Checks     map[string]handler.Pinger
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddleware("guard"))

	// --- Health probes and tooling (no guard) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Every /v1 route reads the caller's bearer token; handlers and the route
	// guard decide what it must prove.
	v1 := e.Group("/v1", middleware.SessionToken(d.Tokens))

	// --- Session events and connectivity ---
	sessionHandler := handler.NewSessionHandler(d.Dispatcher, d.Guard)
	guardHandler := handler.NewGuardHandler(d.Guard)

	v1.POST("/sessions/events", sessionHandler.Receive)
	v1.POST("/connectivity", guardHandler.Connectivity)

	guard := v1.Group("/guard")
	guard.GET("/state", guardHandler.State)
	guard.POST("/reverify", guardHandler.Reverify)
	guard.POST("/signout", guardHandler.SignOut)

	// --- Route-guarded dashboards ---
	dashboards := handler.NewDashboardHandler()
	dash := v1.Group("/dashboards")
	dash.GET("/admin", dashboards.Show("admin"), middleware.Protected(d.Guard, domain.RoleAdmin))
	dash.GET("/teacher", dashboards.Show("teacher"), middleware.Protected(d.Guard, domain.RoleTeacher, domain.RoleAdmin))
	dash.GET("/student", dashboards.Show("student"), middleware.Protected(d.Guard, domain.RoleStudent))
	dash.GET("/parent", dashboards.Show("parent"), middleware.Protected(d.Guard, domain.RoleParent))

	v1.GET("/admin/clients", guardHandler.Clients, middleware.Protected(d.Guard, domain.RoleAdmin))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("client_id", middleware.ClientID(c)).
				Msg("request")
			return nil
		},
	})
}
