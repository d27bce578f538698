// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Base DTOs ---

// BaseResponse contains common response fields.
type BaseResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// CatalogResponse contains catalog fields.
type CatalogResponse struct {
	BaseResponse
	Code string `json:"code"`
	Name string `json:"name"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Bulk operations ---

// BulkRequest selects records for a bulk activate, deactivate or delete.
// At least one of IDs, Search, Active or Filter must be set; an empty selector
// would touch the whole table and is rejected. Use All for that.
type BulkRequest struct {
	IDs    []string      `json:"ids"`
	Search string        `json:"search"`
	Active *bool         `json:"active"`
	Filter []filter.Item `json:"filter"`
	All    bool          `json:"all"`
	Force  bool          `json:"force"`
}

// ToFilter converts the selector into a domain filter.
func (r *BulkRequest) ToFilter() (domain.ListFilter, error) {
	f := domain.ListFilter{
		Search:          r.Search,
		Active:          r.Active,
		AdvancedFilters: r.Filter,
	}

	for _, raw := range r.IDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			return f, apperror.NewValidation("invalid id format").WithDetail("id", raw)
		}
		f.IDs = append(f.IDs, parsed)
	}

	if !r.All && len(f.IDs) == 0 && f.Search == "" && f.Active == nil && len(f.AdvancedFilters) == 0 {
		return f, apperror.NewValidation("bulk request needs ids, a filter or all=true")
	}
	return f, nil
}

// BulkResponse reports how many rows a bulk operation matched.
type BulkResponse struct {
	Affected int64 `json:"affected"`
}
