// Package v1 provides the ops HTTP surface: health checks and metrics.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockroom/internal/infrastructure/http/v1/handlers"
	"stockroom/internal/infrastructure/http/v1/middleware"
	"stockroom/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Health   handlers.HealthConfig
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger

	// Development switches gin to debug mode.
	Development bool
}

// NewRouter creates the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Order matters: recovery must wrap everything.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
