// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/domain/catalogs/warehouse"
	"activatable/internal/infrastructure/http/v1/handlers"
	"activatable/internal/infrastructure/http/v1/middleware"
	"activatable/internal/metadata"
	"activatable/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// Registry stores record type definitions for /meta
	Registry *metadata.Registry

	Warehouses *warehouse.Service
	Units      *unit.Service

	// Pool is pinged by the readiness probe; nil on the in-memory store
	Pool handlers.Pinger

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}
	{
		registerCatalogRoutes(v1, cfg)
		registerMetaRoutes(v1, cfg)
	}

	return router
}

// registerCatalogRoutes registers the activatable catalogs.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	if cfg.Warehouses != nil {
		handler := handlers.NewWarehouseHandler(baseHandler, cfg.Warehouses)
		RegisterActivatableRoutes(catalogs.Group("/warehouses"), handler)
	}

	if cfg.Units != nil {
		handler := handlers.NewUnitHandler(baseHandler, cfg.Units)
		RegisterActivatableRoutes(catalogs.Group("/units"), handler)
	}
}

// registerMetaRoutes registers metadata endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Registry == nil {
		return
	}

	handler := handlers.NewMetadataHandler(handlers.NewBaseHandler(), cfg.Registry)
	meta := rg.Group("/meta")
	{
		meta.GET("/models", handler.ListModels)
		meta.GET("/models/:name", handler.GetModel)
	}
}
