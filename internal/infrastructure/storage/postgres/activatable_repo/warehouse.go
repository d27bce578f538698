package activatable_repo

import (
	"activatable/internal/domain/catalogs/warehouse"
	"activatable/internal/infrastructure/storage/postgres"
)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseActivatableRepo[*warehouse.Warehouse]
}

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseActivatableRepo: NewBaseActivatableRepo(
			txManager,
			warehouse.Definition(),
			func() *warehouse.Warehouse { return &warehouse.Warehouse{} },
		),
	}
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)
