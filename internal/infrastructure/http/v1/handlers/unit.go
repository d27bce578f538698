package handlers

import (
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/infrastructure/http/v1/dto"
)

// UnitHTTPHandler serves units of measure.
type UnitHTTPHandler = ActivatableHandler[
	*unit.Unit,
	dto.CreateUnitRequest,
	dto.UpdateUnitRequest,
]

// NewUnitHandler creates the unit handler.
func NewUnitHandler(base *BaseHandler, service *unit.Service) *UnitHTTPHandler {
	return NewActivatableHandler(base, ActivatableHandlerConfig[
		*unit.Unit,
		dto.CreateUnitRequest,
		dto.UpdateUnitRequest,
	]{
		Service: service.ActivatableService,
		MapCreateDTO: func(req dto.CreateUnitRequest) (*unit.Unit, error) {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateUnitRequest, existing *unit.Unit) (*unit.Unit, error) {
			if err := req.ApplyTo(existing); err != nil {
				return nil, err
			}
			return existing, nil
		},
		MapToDTO: func(entity *unit.Unit) any {
			return dto.FromUnit(entity)
		},
	})
}
