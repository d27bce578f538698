package warehouse

import (
	"activatable/internal/domain"
)

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	domain.ActivatableRepository[*Warehouse]
}
