// Package warehouse provides the Warehouse catalog.
// Warehouses are storage locations; a closed warehouse is deactivated, never removed,
// so historic stock records keep their reference.
package warehouse

import (
	"context"

	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/metadata"
)

// Name is the record type name used in events and routes.
const Name = "Warehouse"

// Table is the database table.
const Table = "cat_warehouses"

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain         WarehouseType = "main"
	TypeDistribution WarehouseType = "distribution"
	TypeRetail       WarehouseType = "retail"
	TypeProduction   WarehouseType = "production"
	TypeTransit      WarehouseType = "transit"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog
	entity.BaseActivatable

	// Type defines the warehouse category
	Type WarehouseType `db:"type" json:"type"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// AllowNegativeStock indicates if negative stock is allowed
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	// IsDefault indicates if this is the default warehouse
	IsDefault bool `db:"is_default" json:"isDefault"`

	// OrganizationID is the owning organization. Organizations referenced by a
	// warehouse cannot be deleted.
	OrganizationID id.ID `db:"organization_id" json:"organizationId" ref:"cat_organizations(id)" on_delete:"restrict"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewWarehouse creates an active Warehouse with required fields.
func NewWarehouse(code, name string, whType WarehouseType, organizationID id.ID) *Warehouse {
	return &Warehouse{
		Catalog:         entity.NewCatalog(code, name),
		BaseActivatable: entity.BaseActivatable{IsActive: true},
		Type:            whType,
		OrganizationID:  organizationID,
	}
}

// Definition describes the Warehouse type for the metadata registry.
func Definition() metadata.ModelDef {
	def := metadata.Inspect(Warehouse{}, Name, Table)
	def.Label = "Warehouses"
	return def
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}

	// Type validation
	if !isValidWarehouseType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}

	if id.IsNil(w.OrganizationID) {
		return apperror.NewValidation("organization is required").
			WithDetail("field", "organizationId")
	}

	if w.IsDefault && !w.IsActive {
		return apperror.NewValidation("default warehouse must be active").
			WithDetail("field", "isActive")
	}

	return nil
}

// --- Validation Helpers ---

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeMain, TypeDistribution, TypeRetail, TypeProduction, TypeTransit:
		return true
	}
	return false
}
