package dto

import (
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code               string                  `json:"code"`
	Name               string                  `json:"name" binding:"required"`
	Type               warehouse.WarehouseType `json:"type" binding:"required"`
	Address            *string                 `json:"address"`
	IsActive           *bool                   `json:"isActive"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
	OrganizationID     string                  `json:"organizationId" binding:"required"`
	Description        *string                 `json:"description"`
}

// ToEntity converts DTO to domain entity. Warehouses are created active unless
// the request says otherwise.
func (r *CreateWarehouseRequest) ToEntity() (*warehouse.Warehouse, error) {
	orgID, err := id.Parse(r.OrganizationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid organizationId").WithDetail("field", "organizationId")
	}

	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type, orgID)
	wh.Address = r.Address
	if r.IsActive != nil {
		wh.IsActive = *r.IsActive
	}
	wh.AllowNegativeStock = r.AllowNegativeStock
	wh.IsDefault = r.IsDefault
	wh.Description = r.Description
	return wh, nil
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code               string                  `json:"code"`
	Name               string                  `json:"name" binding:"required"`
	Type               warehouse.WarehouseType `json:"type" binding:"required"`
	Address            *string                 `json:"address,omitempty"`
	IsActive           bool                    `json:"isActive"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
	OrganizationID     string                  `json:"organizationId" binding:"required"`
	Description        *string                 `json:"description,omitempty"`
	Version            int                     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) error {
	orgID, err := id.Parse(r.OrganizationID)
	if err != nil {
		return apperror.NewValidation("invalid organizationId").WithDetail("field", "organizationId")
	}

	wh.Code = r.Code
	wh.Name = r.Name
	wh.Type = r.Type
	wh.Address = r.Address
	wh.IsActive = r.IsActive
	wh.AllowNegativeStock = r.AllowNegativeStock
	wh.IsDefault = r.IsDefault
	wh.OrganizationID = orgID
	wh.Description = r.Description
	wh.Version = r.Version
	return nil
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	CatalogResponse
	Type               warehouse.WarehouseType `json:"type"`
	Address            *string                 `json:"address,omitempty"`
	IsActive           bool                    `json:"isActive"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
	OrganizationID     string                  `json:"organizationId"`
	Description        *string                 `json:"description,omitempty"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) *WarehouseResponse {
	return &WarehouseResponse{
		CatalogResponse: CatalogResponse{
			BaseResponse: BaseResponse{ID: wh.ID.String(), Version: wh.Version},
			Code:         wh.Code,
			Name:         wh.Name,
		},
		Type:               wh.Type,
		Address:            wh.Address,
		IsActive:           wh.IsActive,
		AllowNegativeStock: wh.AllowNegativeStock,
		IsDefault:          wh.IsDefault,
		OrganizationID:     wh.OrganizationID.String(),
		Description:        wh.Description,
	}
}
