package unit

import (
	"context"
	"fmt"
	"strings"

	"activatable/internal/activation"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/core/tx"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
	"activatable/pkg/logger"
)

// Service provides business logic for Unit catalog.
// Uses composition with domain.ActivatableService for save/delete semantics.
type Service struct {
	*domain.ActivatableService[*Unit]
}

// NewService creates a new Unit service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	dispatcher *activation.Dispatcher,
	log *logger.Logger,
) *Service {
	base := domain.NewActivatableService(domain.ActivatableServiceConfig[*Unit]{
		Repo:       repo,
		TxManager:  txManager,
		Dispatcher: dispatcher,
		Model:      Definition(),
		Logger:     log,
	})

	svc := &Service{ActivatableService: base}

	base.Hooks().OnBeforeCreate(svc.prepareForSave)
	base.Hooks().OnBeforeUpdate(svc.prepareForSave)
	base.Hooks().OnBeforeDelete(svc.checkNoEnabledDerived)
	base.Hooks().OnBeforeBulkUpdate(svc.checkBulkUpdate)
	base.Hooks().OnBeforeBulkDelete(func(ctx context.Context, ids []id.ID, _ map[string]any) error {
		return svc.checkNoEnabledDerivedOf(ctx, ids)
	})
	base.Hooks().OnBeforeImport(checkImportedSymbols)

	return svc
}

// prepareForSave normalizes the symbol and checks uniqueness.
func (s *Service) prepareForSave(ctx context.Context, u *Unit) error {
	u.Symbol = strings.TrimSpace(u.Symbol)

	ids, err := s.Objects().
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "symbol", Operator: filter.Equal, Value: u.Symbol},
			{Field: "id", Operator: filter.NotEqual, Value: u.ID},
		}}).
		IDs(ctx)
	if err != nil {
		return fmt.Errorf("check symbol: %w", err)
	}
	if len(ids) > 0 {
		return apperror.NewConflict("unit with this symbol already exists").
			WithDetail("symbol", u.Symbol)
	}

	if !u.IsEnabled {
		return s.checkNoEnabledDerived(ctx, u)
	}
	return nil
}

// checkNoEnabledDerived refuses to disable a base unit while enabled units convert to it.
func (s *Service) checkNoEnabledDerived(ctx context.Context, u *Unit) error {
	if !u.IsBase {
		return nil
	}

	ids, err := s.Objects().
		WhereActive(true).
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "base_unit_id", Operator: filter.Equal, Value: u.ID},
		}}).
		IDs(ctx)
	if err != nil {
		return fmt.Errorf("check derived units: %w", err)
	}
	if len(ids) > 0 {
		return apperror.NewValidation("base unit has enabled derived units; disable them first").
			WithDetail("id", u.ID.String()).
			WithDetail("derived", len(ids))
	}
	return nil
}

// checkImportedSymbols refuses a batch that repeats a symbol.
func checkImportedSymbols(ctx context.Context, batch []*Unit) error {
	seen := make(map[string]string, len(batch))
	for _, u := range batch {
		symbol := strings.TrimSpace(u.Symbol)
		if code, ok := seen[symbol]; ok {
			return apperror.NewConflict("unit with this symbol already exists").
				WithDetail("symbol", symbol).
				WithDetail("codes", []string{code, u.Code})
		}
		seen[symbol] = u.Code
	}
	return nil
}

// checkBulkUpdate applies the single-record rules to a bulk write: one symbol per
// unit, and no disabled base unit with enabled units outside the batch.
func (s *Service) checkBulkUpdate(ctx context.Context, ids []id.ID, values map[string]any) error {
	if v, ok := values["symbol"]; ok {
		symbol := strings.TrimSpace(fmt.Sprint(v))
		if len(ids) > 1 {
			return apperror.NewConflict("unit symbol cannot be set on several units").
				WithDetail("symbol", symbol)
		}
		taken, err := s.Objects().
			Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
				{Field: "symbol", Operator: filter.Equal, Value: symbol},
				{Field: "id", Operator: filter.NotEqual, Value: ids[0]},
			}}).
			IDs(ctx)
		if err != nil {
			return fmt.Errorf("check symbol: %w", err)
		}
		if len(taken) > 0 {
			return apperror.NewConflict("unit with this symbol already exists").
				WithDetail("symbol", symbol)
		}
	}

	if enabled, ok := values[s.Model().ActivatableField]; ok && enabled == false {
		return s.checkNoEnabledDerivedOf(ctx, ids)
	}
	return nil
}

// checkNoEnabledDerivedOf is checkNoEnabledDerived for a batch. Derived units in
// the batch itself do not count.
func (s *Service) checkNoEnabledDerivedOf(ctx context.Context, ids []id.ID) error {
	bases, err := s.Objects().
		WithIDs(ids...).
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "is_base", Operator: filter.Equal, Value: true},
		}}).
		IDs(ctx)
	if err != nil {
		return fmt.Errorf("check base units: %w", err)
	}
	if len(bases) == 0 {
		return nil
	}

	derived, err := s.Objects().
		WhereActive(true).
		Filter(domain.ListFilter{AdvancedFilters: []filter.Item{
			{Field: "base_unit_id", Operator: filter.InList, Value: bases},
			{Field: "id", Operator: filter.NotInList, Value: ids},
		}}).
		IDs(ctx)
	if err != nil {
		return fmt.Errorf("check derived units: %w", err)
	}
	if len(derived) > 0 {
		return apperror.NewValidation("base unit has enabled derived units; disable them first").
			WithDetail("derived", len(derived))
	}
	return nil
}
