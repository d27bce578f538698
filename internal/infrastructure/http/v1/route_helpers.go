package v1

import (
	"github.com/gin-gonic/gin"
)

// ActivatableRouteHandler is implemented by handlers.ActivatableHandler for
// every record type.
type ActivatableRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Activate(c *gin.Context)
	Deactivate(c *gin.Context)
	BulkActivate(c *gin.Context)
	BulkDeactivate(c *gin.Context)
	BulkDelete(c *gin.Context)
}

// RegisterActivatableRoutes registers CRUD and activation routes for a record type.
//
// Usage:
//
//	handler := handlers.NewUnitHandler(baseHandler, service)
//	RegisterActivatableRoutes(catalogs.Group("/units"), handler)
func RegisterActivatableRoutes(group *gin.RouterGroup, handler ActivatableRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/activate", handler.Activate)
	group.POST("/:id/deactivate", handler.Deactivate)

	bulk := group.Group("/bulk")
	bulk.POST("/activate", handler.BulkActivate)
	bulk.POST("/deactivate", handler.BulkDeactivate)
	bulk.POST("/delete", handler.BulkDelete)
}
