package warehouse

import (
	"context"
	"fmt"

	"activatable/internal/activation"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/core/tx"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
	"activatable/pkg/logger"
)

// Service provides business logic for Warehouse catalog.
// Uses composition with domain.ActivatableService for save/delete semantics.
type Service struct {
	*domain.ActivatableService[*Warehouse] // Embedded for delegation
}

// NewService creates a new Warehouse service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	dispatcher *activation.Dispatcher,
	log *logger.Logger,
) *Service {
	base := domain.NewActivatableService(domain.ActivatableServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		Dispatcher: dispatcher,
		Model:      Definition(),
		Logger:     log,
	})

	svc := &Service{ActivatableService: base}

	base.Hooks().OnBeforeCreate(svc.prepareDefault)
	base.Hooks().OnBeforeUpdate(svc.prepareDefault)
	base.Hooks().OnBeforeDelete(svc.checkNotDefault)
	base.Hooks().OnBeforeBulkUpdate(svc.checkBulkUpdate)
	base.Hooks().OnBeforeBulkDelete(func(ctx context.Context, ids []id.ID, _ map[string]any) error {
		return svc.refuseDefault(ctx, ids, "deleted")
	})
	base.Hooks().OnBeforeImport(checkImportedDefaults)

	return svc
}

// prepareDefault keeps a single default warehouse.
func (s *Service) prepareDefault(ctx context.Context, wh *Warehouse) error {
	if !wh.IsDefault {
		return nil
	}
	return s.clearDefault(ctx, wh)
}

// checkNotDefault refuses to delete the default warehouse.
func (s *Service) checkNotDefault(ctx context.Context, wh *Warehouse) error {
	if wh.IsDefault {
		return apperror.NewValidation("default warehouse cannot be deleted; assign another default first").
			WithDetail("id", wh.ID.String())
	}
	return nil
}

// clearDefault resets the default flag on every other warehouse.
func (s *Service) clearDefault(ctx context.Context, keep *Warehouse) error {
	_, err := s.Objects().
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "is_default", Operator: filter.Equal, Value: true},
			{Field: "id", Operator: filter.NotEqual, Value: keep.ID},
		}}).
		Update(ctx, map[string]any{"is_default": false})
	return err
}

// checkImportedDefaults allows at most one default warehouse in a batch.
func checkImportedDefaults(ctx context.Context, batch []*Warehouse) error {
	var defaults []string
	for _, wh := range batch {
		if wh.IsDefault {
			defaults = append(defaults, wh.Code)
		}
	}
	if len(defaults) > 1 {
		return apperror.NewValidation("only one warehouse in a batch can be the default").
			WithDetail("codes", defaults)
	}
	return nil
}

// checkBulkUpdate keeps bulk writes from breaking the single active default.
// Deactivating the default is allowed only together with clearing it.
func (s *Service) checkBulkUpdate(ctx context.Context, ids []id.ID, values map[string]any) error {
	isDefault, setsDefault := values["is_default"]
	if setsDefault && isDefault == true {
		return apperror.NewValidation("the default warehouse is assigned by saving a single warehouse").
			WithDetail("field", "is_default")
	}
	if active, ok := values[s.Model().ActivatableField]; !ok || active != false || setsDefault {
		return nil
	}
	return s.refuseDefault(ctx, ids, "deactivated")
}

func (s *Service) refuseDefault(ctx context.Context, ids []id.ID, verb string) error {
	defaults, err := s.Objects().
		WithIDs(ids...).
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "is_default", Operator: filter.Equal, Value: true},
		}}).
		IDs(ctx)
	if err != nil {
		return fmt.Errorf("check default warehouse: %w", err)
	}
	if len(defaults) > 0 {
		return apperror.NewValidation("default warehouse cannot be "+verb+"; assign another default first").
			WithDetail("id", defaults[0].String())
	}
	return nil
}
