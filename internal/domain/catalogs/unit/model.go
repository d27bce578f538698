// Package unit provides the Unit catalog (measurement units for goods).
// Units store their activation flag in is_enabled.
package unit

import (
	"context"

	"github.com/shopspring/decimal"

	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/metadata"
)

// Name is the record type name used in events and routes.
const Name = "Unit"

// Table is the database table.
const Table = "cat_units"

// FlagColumn is the activation flag column of units.
const FlagColumn = "is_enabled"

// UnitType defines the type of measurement unit.
type UnitType string

const (
	TypePiece  UnitType = "piece"
	TypeWeight UnitType = "weight"
	TypeLength UnitType = "length"
	TypeArea   UnitType = "area"
	TypeVolume UnitType = "volume"
	TypeTime   UnitType = "time"
	TypePack   UnitType = "pack"
)

// Unit represents a measurement unit.
type Unit struct {
	entity.Catalog

	// IsEnabled is the activation flag
	IsEnabled bool `db:"is_enabled" json:"isEnabled"`

	// Type defines the unit category
	Type UnitType `db:"type" json:"type"`

	// Symbol is the short symbol (e.g., "kg", "m", "pcs")
	Symbol string `db:"symbol" json:"symbol"`

	// InternationalCode is the code in the international classifier
	InternationalCode *string `db:"international_code" json:"internationalCode,omitempty"`

	// BaseUnitID is reference to base unit for conversions
	BaseUnitID *id.ID `db:"base_unit_id" json:"baseUnitId,omitempty" ref:"cat_units(id)" on_delete:"set_null"`

	// ConversionFactor is the multiplier to convert to base unit
	// e.g., for "gram" with base "kilogram": factor = 0.001
	ConversionFactor decimal.Decimal `db:"conversion_factor" json:"conversionFactor"`

	// IsBase indicates if this is a base unit (not derived)
	IsBase bool `db:"is_base" json:"isBase"`

	// Description is a free-form note
	Description *string `db:"description" json:"description,omitempty"`
}

// NewUnit creates an enabled base Unit with required fields.
func NewUnit(code, name, symbol string, unitType UnitType) *Unit {
	return &Unit{
		Catalog:          entity.NewCatalog(code, name),
		IsEnabled:        true,
		Type:             unitType,
		Symbol:           symbol,
		ConversionFactor: decimal.NewFromInt(1),
		IsBase:           true,
	}
}

// Definition describes the Unit type for the metadata registry.
func Definition() metadata.ModelDef {
	def := metadata.Inspect(Unit{}, Name, Table)
	def.Label = "Units of measure"
	return def
}

// IsActivated implements entity.Activatable.
func (u *Unit) IsActivated() bool { return u.IsEnabled }

// SetActivated implements entity.Activatable.
func (u *Unit) SetActivated(active bool) { u.IsEnabled = active }

// ActivatableFieldName implements entity.ActivatableFieldNamer.
func (u *Unit) ActivatableFieldName() string { return FlagColumn }

// Validate implements entity.Validatable interface.
func (u *Unit) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := u.Catalog.Validate(ctx); err != nil {
		return err
	}

	// Symbol is required
	if u.Symbol == "" {
		return apperror.NewValidation("symbol is required").
			WithDetail("field", "symbol")
	}

	// Type validation
	if !isValidUnitType(u.Type) {
		return apperror.NewValidation("invalid unit type").
			WithDetail("field", "type").
			WithDetail("value", string(u.Type))
	}

	// Conversion factor must be positive
	if !u.ConversionFactor.IsPositive() {
		return apperror.NewValidation("conversion factor must be positive").
			WithDetail("field", "conversionFactor")
	}

	// If base unit is set, this is not a base unit
	if u.BaseUnitID != nil && !id.IsNil(*u.BaseUnitID) && u.IsBase {
		return apperror.NewValidation("unit with base unit reference cannot be marked as base").
			WithDetail("field", "isBase")
	}

	return nil
}

// --- Validation Helpers ---

func isValidUnitType(t UnitType) bool {
	switch t {
	case TypePiece, TypeWeight, TypeLength, TypeArea, TypeVolume, TypeTime, TypePack:
		return true
	}
	return false
}
