package dto

import (
	"github.com/shopspring/decimal"

	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain/catalogs/unit"
)

// --- Request DTOs ---

// CreateUnitRequest is the request body for creating a unit.
type CreateUnitRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name" binding:"required"`
	Type              unit.UnitType   `json:"type" binding:"required"`
	Symbol            string          `json:"symbol" binding:"required"`
	InternationalCode *string         `json:"internationalCode"`
	BaseUnitID        *string         `json:"baseUnitId"`
	ConversionFactor  decimal.Decimal `json:"conversionFactor"`
	IsEnabled         *bool           `json:"isEnabled"`
	Description       *string         `json:"description"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateUnitRequest) ToEntity() (*unit.Unit, error) {
	u := unit.NewUnit(r.Code, r.Name, r.Symbol, r.Type)
	baseID, err := parseOptionalID(r.BaseUnitID, "baseUnitId")
	if err != nil {
		return nil, err
	}
	u.BaseUnitID = baseID
	u.IsBase = baseID == nil
	u.InternationalCode = r.InternationalCode
	if !r.ConversionFactor.IsZero() {
		u.ConversionFactor = r.ConversionFactor
	}
	if r.IsEnabled != nil {
		u.IsEnabled = *r.IsEnabled
	}
	u.Description = r.Description
	return u, nil
}

// UpdateUnitRequest is the request body for updating a unit.
type UpdateUnitRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name" binding:"required"`
	Type              unit.UnitType   `json:"type" binding:"required"`
	Symbol            string          `json:"symbol" binding:"required"`
	InternationalCode *string         `json:"internationalCode"`
	BaseUnitID        *string         `json:"baseUnitId"`
	ConversionFactor  decimal.Decimal `json:"conversionFactor"`
	IsEnabled         bool            `json:"isEnabled"`
	Description       *string         `json:"description"`
	Version           int             `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateUnitRequest) ApplyTo(u *unit.Unit) error {
	baseID, err := parseOptionalID(r.BaseUnitID, "baseUnitId")
	if err != nil {
		return err
	}

	u.Code = r.Code
	u.Name = r.Name
	u.Type = r.Type
	u.Symbol = r.Symbol
	u.InternationalCode = r.InternationalCode
	u.BaseUnitID = baseID
	u.IsBase = baseID == nil
	u.ConversionFactor = r.ConversionFactor
	u.IsEnabled = r.IsEnabled
	u.Description = r.Description
	u.Version = r.Version
	return nil
}

// --- Response DTOs ---

// UnitResponse is the response body for a unit.
type UnitResponse struct {
	CatalogResponse
	Type              unit.UnitType   `json:"type"`
	Symbol            string          `json:"symbol"`
	InternationalCode *string         `json:"internationalCode,omitempty"`
	BaseUnitID        *string         `json:"baseUnitId,omitempty"`
	ConversionFactor  decimal.Decimal `json:"conversionFactor"`
	IsBase            bool            `json:"isBase"`
	IsEnabled         bool            `json:"isEnabled"`
	Description       *string         `json:"description,omitempty"`
}

// FromUnit creates response DTO from domain entity.
func FromUnit(u *unit.Unit) *UnitResponse {
	resp := &UnitResponse{
		CatalogResponse: CatalogResponse{
			BaseResponse: BaseResponse{ID: u.ID.String(), Version: u.Version},
			Code:         u.Code,
			Name:         u.Name,
		},
		Type:              u.Type,
		Symbol:            u.Symbol,
		InternationalCode: u.InternationalCode,
		ConversionFactor:  u.ConversionFactor,
		IsBase:            u.IsBase,
		IsEnabled:         u.IsEnabled,
		Description:       u.Description,
	}
	if u.BaseUnitID != nil {
		s := u.BaseUnitID.String()
		resp.BaseUnitID = &s
	}
	return resp
}

func parseOptionalID(raw *string, field string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := id.Parse(*raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid "+field).WithDetail("field", field)
	}
	return &parsed, nil
}
