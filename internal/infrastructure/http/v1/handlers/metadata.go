package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"activatable/internal/core/apperror"
	"activatable/internal/metadata"
)

// MetadataHandler exposes the registered record type definitions.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
	}
}

// ListModels returns every registered definition.
// GET /api/v1/meta/models?activatable=true
func (h *MetadataHandler) ListModels(c *gin.Context) {
	onlyActivatable, ok := h.ParseBoolQuery(c, "activatable")
	if !ok {
		return
	}

	models := h.registry.List()
	if onlyActivatable != nil && *onlyActivatable {
		models = h.registry.Activatable()
	}
	if models == nil {
		models = []metadata.ModelDef{}
	}
	c.JSON(http.StatusOK, gin.H{"items": models})
}

// GetModel returns one definition.
// GET /api/v1/meta/models/:name
func (h *MetadataHandler) GetModel(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("model", name))
		return
	}
	c.JSON(http.StatusOK, def)
}
