// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"activatable/internal/core/apperror"
	"activatable/internal/domain"
	domainFilter "activatable/internal/domain/filter"
	"activatable/internal/infrastructure/http/v1/dto"
)

// ActivatableHandler provides generic HTTP handlers for activatable record types.
type ActivatableHandler[T domain.Model, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service *domain.ActivatableService[T]

	mapCreateDTO func(req CreateDTO) (T, error)
	mapUpdateDTO func(req UpdateDTO, existing T) (T, error)
	mapToDTO     func(entity T) any
}

// ActivatableHandlerConfig configures the handler.
type ActivatableHandlerConfig[T domain.Model, CreateDTO any, UpdateDTO any] struct {
	Service      *domain.ActivatableService[T]
	MapCreateDTO func(req CreateDTO) (T, error)
	MapUpdateDTO func(req UpdateDTO, existing T) (T, error)
	MapToDTO     func(entity T) any
}

// NewActivatableHandler creates a new handler.
func NewActivatableHandler[T domain.Model, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg ActivatableHandlerConfig[T, CreateDTO, UpdateDTO],
) *ActivatableHandler[T, CreateDTO, UpdateDTO] {
	return &ActivatableHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
		mapToDTO:     cfg.MapToDTO,
	}
}

// List handles GET / - list with filtering and pagination.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "name")

	active, ok := h.ParseBoolQuery(c, "active")
	if !ok {
		return
	}
	filter.Active = active

	if filterJSON := c.Query("filter"); filterJSON != "" {
		var advFilters []domainFilter.Item
		if err := json.Unmarshal([]byte(filterJSON), &advFilters); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return
		}
		filter.AdvancedFilters = advFilters
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = h.mapToDTO(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /:id.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Get(c *gin.Context) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	entity, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, h.mapToDTO(entity))
}

// Create handles POST /.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	entity, err := h.mapCreateDTO(req)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), entity); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, h.mapToDTO(entity))
}

// Update handles PUT /:id.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.mapUpdateDTO(req, existing)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(updated))
}

// Delete handles DELETE /:id. Without ?force=true the record is deactivated;
// with it the row is removed.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Delete(c *gin.Context) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	force, ok := h.ParseBoolQuery(c, "force")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entityID, force != nil && *force); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Activate handles POST /:id/activate.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate handles POST /:id/deactivate.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) setActive(c *gin.Context, active bool) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}

	entity, err := h.service.SetActive(c.Request.Context(), entityID, active)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(entity))
}

// BulkActivate handles POST /bulk/activate.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) BulkActivate(c *gin.Context) {
	h.bulk(c, func(qs *domain.QuerySet[T], _ bool) (int64, error) {
		return qs.Activate(c.Request.Context())
	})
}

// BulkDeactivate handles POST /bulk/deactivate.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) BulkDeactivate(c *gin.Context) {
	h.bulk(c, func(qs *domain.QuerySet[T], _ bool) (int64, error) {
		return qs.Deactivate(c.Request.Context())
	})
}

// BulkDelete handles POST /bulk/delete; "force": true removes rows.
func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) BulkDelete(c *gin.Context) {
	h.bulk(c, func(qs *domain.QuerySet[T], force bool) (int64, error) {
		return qs.Delete(c.Request.Context(), force)
	})
}

func (h *ActivatableHandler[T, CreateDTO, UpdateDTO]) bulk(
	c *gin.Context,
	op func(qs *domain.QuerySet[T], force bool) (int64, error),
) {
	var req dto.BulkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	f, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	affected, err := op(h.service.Objects().Filter(f), req.Force)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Bulk(c, affected)
}
