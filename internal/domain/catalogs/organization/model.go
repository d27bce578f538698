// Package organization provides the Organization catalog.
// Organizations are plain records; warehouses reference them.
package organization

import (
	"context"

	"activatable/internal/core/entity"
	"activatable/internal/metadata"
)

// Name is the record type name.
const Name = "Organization"

// Table is the database table.
const Table = "cat_organizations"

// Organization represents a legal entity or business unit.
type Organization struct {
	entity.Catalog

	// FullName is the official full name of the organization
	FullName *string `db:"full_name" json:"fullName,omitempty"`

	// TaxID is the tax identification number
	TaxID *string `db:"tax_id" json:"taxId,omitempty"`
}

// NewOrganization creates a new Organization with required fields.
func NewOrganization(code, name string) *Organization {
	return &Organization{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Definition describes the Organization type for the metadata registry.
func Definition() metadata.ModelDef {
	def := metadata.Inspect(Organization{}, Name, Table)
	def.Label = "Organizations"
	return def
}

// Validate implements entity.Validatable interface.
func (o *Organization) Validate(ctx context.Context) error {
	return o.Catalog.Validate(ctx)
}
