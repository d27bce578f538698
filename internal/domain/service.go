// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"fmt"

	"activatable/internal/activation"
	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/core/tx"
	"activatable/internal/metadata"
	"activatable/pkg/logger"
)

// Model is the constraint for records managed by ActivatableService.
type Model interface {
	entity.Activatable
	entity.Validatable
}

// ActivatableService provides save/delete semantics for an activatable record type.
//
// Saving compares the persisted flag with the in-memory one and announces a change
// after commit. Deleting clears the flag unless a forced delete is requested.
type ActivatableService[T Model] struct {
	repo       ActivatableRepository[T]
	txManager  tx.Manager
	dispatcher *activation.Dispatcher
	hooks      *HookRegistry[T]
	model      metadata.ModelDef
	log        *logger.Logger
}

// ActivatableServiceConfig configures the service.
type ActivatableServiceConfig[T Model] struct {
	Repo       ActivatableRepository[T]
	TxManager  tx.Manager
	Dispatcher *activation.Dispatcher
	Model      metadata.ModelDef
	Logger     *logger.Logger
}

// NewActivatableService creates a new service.
func NewActivatableService[T Model](cfg ActivatableServiceConfig[T]) *ActivatableService[T] {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &ActivatableService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		dispatcher: cfg.Dispatcher,
		hooks:      NewHookRegistry[T](),
		model:      cfg.Model,
		log:        log.WithComponent("activatable").With("model", cfg.Model.Name),
	}
}

// Name returns the record type name used in events and errors.
func (s *ActivatableService[T]) Name() string {
	return s.model.Name
}

// Model returns the record type definition.
func (s *ActivatableService[T]) Model() metadata.ModelDef {
	return s.model
}

// Hooks returns the hook registry for external registration.
func (s *ActivatableService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

func (s *ActivatableService[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *ActivatableService[T]) normalizeGetErr(err error, entityID id.ID) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but ensure not-found is mapped to the correct entity name.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.model.Name, entityID.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.model.Name).WithDetail("id", entityID.String())
}

type saveMode int

const (
	saveAny saveMode = iota
	saveCreate
	saveUpdate
)

// Save inserts or updates the record. A record without a persisted row counts as an
// activation change, as does any difference between the stored and in-memory flag.
func (s *ActivatableService[T]) Save(ctx context.Context, e T) error {
	return s.save(ctx, e, saveAny)
}

// Create saves a record that must not exist yet.
func (s *ActivatableService[T]) Create(ctx context.Context, e T) error {
	return s.save(ctx, e, saveCreate)
}

// Update saves a record that must already exist.
func (s *ActivatableService[T]) Update(ctx context.Context, e T) error {
	return s.save(ctx, e, saveUpdate)
}

func (s *ActivatableService[T]) save(ctx context.Context, e T, mode saveMode) error {
	// 1. Validate entity invariants
	if id.IsNil(e.GetID()) {
		return apperror.NewValidation("id is required").WithDetail("field", "id")
	}
	if err := e.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	var created bool
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// 2. Read the persisted flag before writing
		stored, found, err := s.repo.StoredActivation(ctx, e.GetID())
		if err != nil {
			return fmt.Errorf("read %s activation: %w", s.model.Name, err)
		}

		switch {
		case !found && mode == saveUpdate:
			return apperror.NewNotFound(s.model.Name, e.GetID().String())
		case found && mode == saveCreate:
			return apperror.NewConflict(fmt.Sprintf("%s already exists", s.model.Name)).
				WithDetail("id", e.GetID().String())
		}

		// 3. Write with hooks
		if found {
			if err := s.hooks.RunBeforeUpdate(ctx, e); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, e); err != nil {
				return fmt.Errorf("update %s: %w", s.model.Name, err)
			}
		} else {
			created = true
			if err := s.hooks.RunBeforeCreate(ctx, e); err != nil {
				return err
			}
			if err := s.repo.Create(ctx, e); err != nil {
				return fmt.Errorf("create %s: %w", s.model.Name, err)
			}
		}

		// 4. Announce the transition after commit
		if !found || stored != e.IsActivated() {
			return s.dispatcher.Changed(ctx, s.model.Name, []id.ID{e.GetID()}, e.IsActivated())
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 5. Run after hooks (entity is already saved)
	if created {
		s.runAfter(ctx, AfterCreate, e)
	} else {
		s.runAfter(ctx, AfterUpdate, e)
	}
	return nil
}

func (s *ActivatableService[T]) runAfter(ctx context.Context, event HookEvent, e T) {
	if err := s.hooks.Run(ctx, event, e); err != nil {
		s.log.WithContext(ctx).Warnw("after hook failed", "event", event, "id", e.GetID(), "error", err)
	}
}

// GetByID retrieves a record by ID.
func (s *ActivatableService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return e, s.normalizeGetErr(err, entityID)
	}
	return e, nil
}

// List retrieves records with filtering.
func (s *ActivatableService[T]) List(ctx context.Context, f ListFilter) (ListResult[T], error) {
	return s.repo.List(ctx, f)
}

// SetActive loads the record, sets its flag and saves it.
func (s *ActivatableService[T]) SetActive(ctx context.Context, entityID id.ID, active bool) (T, error) {
	e, err := s.GetByID(ctx, entityID)
	if err != nil {
		return e, err
	}
	e.SetActivated(active)
	if err := s.save(ctx, e, saveUpdate); err != nil {
		return e, err
	}
	return e, nil
}

// Delete deactivates the record, writing only the flag column and the version. With
// force the row is removed instead and no activation event is emitted.
func (s *ActivatableService[T]) Delete(ctx context.Context, entityID id.ID, force bool) error {
	// 1. Get entity first (for hooks)
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return s.normalizeGetErr(err, entityID)
	}

	// 2. Run before-delete hooks
	if err := s.hooks.RunBeforeDelete(ctx, e); err != nil {
		return err
	}

	// 3. Delete in transaction
	if force {
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.HardDelete(ctx, entityID); err != nil {
				return s.normalizeDeleteErr(err, entityID)
			}
			return nil
		})
	} else {
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			stored, found, err := s.repo.StoredActivation(ctx, entityID)
			if err != nil {
				return fmt.Errorf("read %s activation: %w", s.model.Name, err)
			}
			if !found {
				return apperror.NewNotFound(s.model.Name, entityID.String())
			}
			if err := s.repo.SetActivation(ctx, entityID, false); err != nil {
				return fmt.Errorf("deactivate %s: %w", s.model.Name, err)
			}
			// after-delete hooks get the row as written, new version included
			if e, err = s.repo.GetByID(ctx, entityID); err != nil {
				return fmt.Errorf("reload %s: %w", s.model.Name, err)
			}
			if stored {
				return s.dispatcher.Changed(ctx, s.model.Name, []id.ID{entityID}, false)
			}
			return nil
		})
	}
	if err != nil {
		return err
	}

	// 4. Run after-delete hooks
	s.runAfter(ctx, AfterDelete, e)
	return nil
}

func (s *ActivatableService[T]) normalizeDeleteErr(err error, entityID id.ID) error {
	switch {
	case apperror.IsNotFound(err):
		return apperror.NewNotFound(s.model.Name, entityID.String())
	case apperror.HasCode(err, apperror.CodeProtected):
		appErr, _ := apperror.AsAppError(err)
		return apperror.NewProtected(s.model.Name, entityID.String()).WithCause(appErr.Err)
	case apperror.IsAppError(err):
		return err
	}
	return fmt.Errorf("delete %s: %w", s.model.Name, err)
}

// PrepareImport readies new records for an insert that bypasses Save. Import hooks
// check the batch as a whole, then each record runs the before-create hooks against
// the stored table. Call it inside the transaction that writes the records.
func (s *ActivatableService[T]) PrepareImport(ctx context.Context, records []T) error {
	if err := s.hooks.RunBeforeImport(ctx, records); err != nil {
		return err
	}
	for i, e := range records {
		if err := s.hooks.RunBeforeCreate(ctx, e); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("record", i)
			}
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Objects returns a query set over the whole table.
func (s *ActivatableService[T]) Objects() *QuerySet[T] {
	return &QuerySet[T]{svc: s}
}
