package unit

import (
	"activatable/internal/domain"
)

// Repository defines the interface for Unit persistence.
type Repository interface {
	domain.ActivatableRepository[*Unit]
}
