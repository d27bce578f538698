package activatable_repo

import (
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/infrastructure/storage/postgres"
)

// UnitRepo implements unit.Repository. Its flag lives in is_enabled.
type UnitRepo struct {
	*BaseActivatableRepo[*unit.Unit]
}

// NewUnitRepo creates a new unit repository.
func NewUnitRepo(txManager *postgres.TxManager) *UnitRepo {
	return &UnitRepo{
		BaseActivatableRepo: NewBaseActivatableRepo(
			txManager,
			unit.Definition(),
			func() *unit.Unit { return &unit.Unit{} },
		),
	}
}

var _ unit.Repository = (*UnitRepo)(nil)
