// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"

	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/domain/filter"
)

// --- Filter & Pagination ---

// ListFilter selects records for listing and for bulk operations.
// Bulk operations ignore OrderBy, Limit and Offset.
type ListFilter struct {
	// Search matches code or name (case-insensitive substring)
	Search string

	// IDs filters by specific IDs
	IDs []id.ID

	// Active filters by the activatable flag; nil means both
	Active *bool

	// AdvancedFilters are arbitrary column conditions
	AdvancedFilters []filter.Item

	// OrderBy specifies sorting (e.g., "name", "-code")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "name",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Repository Interfaces ---

// ActivatableRepository stores an activatable record type.
// Implementations take the transaction from ctx when one is active.
type ActivatableRepository[T entity.Activatable] interface {
	// Create inserts a new record
	Create(ctx context.Context, entity T) error

	// Update modifies an existing record (with optimistic locking)
	Update(ctx context.Context, entity T) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id id.ID) (T, error)

	// StoredActivation returns the persisted flag value and locks the row.
	// found is false when no row exists.
	StoredActivation(ctx context.Context, id id.ID) (active bool, found bool, err error)

	// SetActivation writes only the flag column.
	SetActivation(ctx context.Context, id id.ID, active bool) error

	// HardDelete removes the row. Rows still referenced elsewhere fail with PROTECTED.
	HardDelete(ctx context.Context, id id.ID) error

	// Partition locks the rows matching f and splits their IDs by whether setting the
	// flag to active would change them. touched holds every matching ID.
	Partition(ctx context.Context, f ListFilter, active bool) (changed, touched []id.ID, err error)

	// UpdateWhere applies column values to every row matching f.
	UpdateWhere(ctx context.Context, f ListFilter, values map[string]any) (int64, error)

	// DeleteWhere removes every row matching f.
	DeleteWhere(ctx context.Context, f ListFilter) (int64, error)

	// List retrieves records with filtering and pagination
	List(ctx context.Context, f ListFilter) (ListResult[T], error)

	// SelectIDs returns the IDs of rows matching f
	SelectIDs(ctx context.Context, f ListFilter) ([]id.ID, error)
}

// --- Hooks ---

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	AfterUpdate  HookEvent = "after_update"
	BeforeDelete HookEvent = "before_delete"
	AfterDelete  HookEvent = "after_delete"

	BeforeBulkUpdate HookEvent = "before_bulk_update"
	BeforeBulkDelete HookEvent = "before_bulk_delete"

	BeforeImport HookEvent = "before_import"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// BulkHook runs inside the transaction of a query set write with the IDs about
// to be written. values is nil for deletes.
type BulkHook func(ctx context.Context, ids []id.ID, values map[string]any) error

// BatchHook sees new records that are inserted together, before any of them is
// written.
type BatchHook[T any] func(ctx context.Context, records []T) error

// HookRegistry stores lifecycle hooks for an entity type.
// Uses event-based approach for cleaner code.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
	bulk  map[HookEvent][]BulkHook
	batch map[HookEvent][]BatchHook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
		bulk:  make(map[HookEvent][]BulkHook),
		batch: make(map[HookEvent][]BatchHook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// OnBulk registers a hook for a bulk event.
func (r *HookRegistry[T]) OnBulk(event HookEvent, hook BulkHook) {
	r.bulk[event] = append(r.bulk[event], hook)
}

// HasBulk reports whether any hook is registered for a bulk event.
func (r *HookRegistry[T]) HasBulk(event HookEvent) bool {
	return len(r.bulk[event]) > 0
}

// RunBulk executes all hooks for a bulk event.
func (r *HookRegistry[T]) RunBulk(ctx context.Context, event HookEvent, ids []id.ID, values map[string]any) error {
	for _, hook := range r.bulk[event] {
		if err := hook(ctx, ids, values); err != nil {
			return err
		}
	}
	return nil
}

// Convenience methods for backward compatibility

// OnBeforeCreate registers a hook to run before create.
func (r *HookRegistry[T]) OnBeforeCreate(hook Hook[T]) {
	r.On(BeforeCreate, hook)
}

// OnAfterCreate registers a hook to run after create.
func (r *HookRegistry[T]) OnAfterCreate(hook Hook[T]) {
	r.On(AfterCreate, hook)
}

// OnBeforeUpdate registers a hook to run before update.
func (r *HookRegistry[T]) OnBeforeUpdate(hook Hook[T]) {
	r.On(BeforeUpdate, hook)
}

// OnAfterUpdate registers a hook to run after update.
func (r *HookRegistry[T]) OnAfterUpdate(hook Hook[T]) {
	r.On(AfterUpdate, hook)
}

// OnBeforeDelete registers a hook to run before delete.
func (r *HookRegistry[T]) OnBeforeDelete(hook Hook[T]) {
	r.On(BeforeDelete, hook)
}

// OnAfterDelete registers a hook to run after delete.
func (r *HookRegistry[T]) OnAfterDelete(hook Hook[T]) {
	r.On(AfterDelete, hook)
}

// RunBeforeCreate executes all before-create hooks.
func (r *HookRegistry[T]) RunBeforeCreate(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeCreate, entity)
}

// RunAfterCreate executes all after-create hooks.
func (r *HookRegistry[T]) RunAfterCreate(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterCreate, entity)
}

// RunBeforeUpdate executes all before-update hooks.
func (r *HookRegistry[T]) RunBeforeUpdate(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeUpdate, entity)
}

// RunAfterUpdate executes all after-update hooks.
func (r *HookRegistry[T]) RunAfterUpdate(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterUpdate, entity)
}

// RunBeforeDelete executes all before-delete hooks.
func (r *HookRegistry[T]) RunBeforeDelete(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeDelete, entity)
}

// RunAfterDelete executes all after-delete hooks.
func (r *HookRegistry[T]) RunAfterDelete(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterDelete, entity)
}

// OnBeforeBulkUpdate registers a hook to run before a query set update, including
// bulk activate, deactivate and soft delete.
func (r *HookRegistry[T]) OnBeforeBulkUpdate(hook BulkHook) {
	r.OnBulk(BeforeBulkUpdate, hook)
}

// OnBeforeBulkDelete registers a hook to run before a forced query set delete.
func (r *HookRegistry[T]) OnBeforeBulkDelete(hook BulkHook) {
	r.OnBulk(BeforeBulkDelete, hook)
}

// OnBeforeImport registers a hook that checks an imported batch as a whole.
func (r *HookRegistry[T]) OnBeforeImport(hook BatchHook[T]) {
	r.batch[BeforeImport] = append(r.batch[BeforeImport], hook)
}

// RunBeforeImport executes all before-import hooks.
func (r *HookRegistry[T]) RunBeforeImport(ctx context.Context, records []T) error {
	for _, hook := range r.batch[BeforeImport] {
		if err := hook(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
