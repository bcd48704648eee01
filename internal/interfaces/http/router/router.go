// Package router assembles the gin engine: middleware chain, versioned API
// group and the route registrars of each handler.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/interfaces/http/dto"
	"github.com/vetpms/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar adds a handler's routes to the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// EngineConfig configures the middleware chain of NewEngine
type EngineConfig struct {
	ServiceName    string
	MaxBodySize    int64 // 0 disables the limit
	CORS           middleware.CORSConfig
	TrustedProxies []string
	Tracing        bool
	Meter          metric.Meter // nil disables HTTP metrics
}

// NewEngine creates a gin engine whose middleware runs in this order:
// request id, tracing, panic recovery, request logging, metrics, security
// headers, CORS, body limit.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.HandleMethodNotAllowed = true

	chain := []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.Tracing,
			SkipPaths:   []string{"/health"},
		}),
		middleware.SpanEnricher(),
		logger.Recovery(log),
		logger.RequestLogger(log),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	}
	if cfg.MaxBodySize > 0 {
		chain = append(chain, middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(chain...)
	middleware.SetupValidator()

	engine.NoRoute(reject(http.StatusNotFound, shared.CodeNotFound, "Route not found"))
	engine.NoMethod(reject(http.StatusMethodNotAllowed, dto.ErrCodeMethodNotAllowed, "Method not allowed"))
	return engine, nil
}

func reject(status int, code, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, c.GetString(logger.RequestIDKey)))
	}
}

// Mount registers every registrar under /api/<version> and returns the group
func Mount(engine *gin.Engine, version string, registrars ...RouteRegistrar) *gin.RouterGroup {
	api := engine.Group("/api/" + version)
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return api
}
