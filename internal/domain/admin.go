package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/metadata"
)

// ModelAdmin exposes one activatable record type without its Go type, so routers and
// tools can serve every registered type through the same code.
type ModelAdmin interface {
	Name() string
	Model() metadata.ModelDef

	Get(ctx context.Context, id id.ID) (any, error)
	List(ctx context.Context, f ListFilter) (ListResult[any], error)

	// Decode builds and validates a new record from data without saving it.
	Decode(ctx context.Context, data []byte) (Model, error)
	// Prepare runs the create checks over decoded records that will be inserted
	// together without Save.
	Prepare(ctx context.Context, records []Model) error
	// Create decodes data into a new record and saves it.
	Create(ctx context.Context, data []byte) (any, error)
	// Update decodes data onto the stored record and saves it.
	Update(ctx context.Context, id id.ID, data []byte) (any, error)

	SetActive(ctx context.Context, id id.ID, active bool) (any, error)
	Delete(ctx context.Context, id id.ID, force bool) error

	// BulkSetActive activates or deactivates every record matching f.
	BulkSetActive(ctx context.Context, f ListFilter, active bool) (int64, error)
	// BulkDelete deactivates, or with force removes, every record matching f.
	BulkDelete(ctx context.Context, f ListFilter, force bool) (int64, error)
}

type modelAdmin[T Model] struct {
	svc   *ActivatableService[T]
	newFn func() T
}

// NewModelAdmin wraps svc. newFn returns a fresh record with its ID assigned.
func NewModelAdmin[T Model](svc *ActivatableService[T], newFn func() T) ModelAdmin {
	return &modelAdmin[T]{svc: svc, newFn: newFn}
}

func (a *modelAdmin[T]) Name() string             { return a.svc.Name() }
func (a *modelAdmin[T]) Model() metadata.ModelDef { return a.svc.Model() }

func (a *modelAdmin[T]) Get(ctx context.Context, entityID id.ID) (any, error) {
	return a.svc.GetByID(ctx, entityID)
}

func (a *modelAdmin[T]) List(ctx context.Context, f ListFilter) (ListResult[any], error) {
	res, err := a.svc.List(ctx, f)
	if err != nil {
		return ListResult[any]{}, err
	}

	items := make([]any, len(res.Items))
	for i, item := range res.Items {
		items[i] = item
	}
	return ListResult[any]{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}, nil
}

func (a *modelAdmin[T]) decode(data []byte, into T) error {
	if err := json.Unmarshal(data, into); err != nil {
		return apperror.NewValidation("invalid request body").WithDetail("error", err.Error())
	}
	return nil
}

func (a *modelAdmin[T]) Decode(ctx context.Context, data []byte) (Model, error) {
	e := a.newFn()
	if err := a.decode(data, e); err != nil {
		return nil, err
	}
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (a *modelAdmin[T]) Prepare(ctx context.Context, records []Model) error {
	typed := make([]T, len(records))
	for i, m := range records {
		e, ok := m.(T)
		if !ok {
			return apperror.NewValidation(fmt.Sprintf("record %d is not a %s", i, a.Name()))
		}
		typed[i] = e
	}
	return a.svc.PrepareImport(ctx, typed)
}

func (a *modelAdmin[T]) Create(ctx context.Context, data []byte) (any, error) {
	e := a.newFn()
	if err := a.decode(data, e); err != nil {
		return nil, err
	}
	if err := a.svc.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (a *modelAdmin[T]) Update(ctx context.Context, entityID id.ID, data []byte) (any, error) {
	e, err := a.svc.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if err := a.decode(data, e); err != nil {
		return nil, err
	}
	if e.GetID() != entityID {
		return nil, apperror.NewValidation("id cannot be changed").WithDetail("field", "id")
	}
	if err := a.svc.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (a *modelAdmin[T]) SetActive(ctx context.Context, entityID id.ID, active bool) (any, error) {
	return a.svc.SetActive(ctx, entityID, active)
}

func (a *modelAdmin[T]) Delete(ctx context.Context, entityID id.ID, force bool) error {
	return a.svc.Delete(ctx, entityID, force)
}

func (a *modelAdmin[T]) BulkSetActive(ctx context.Context, f ListFilter, active bool) (int64, error) {
	qs := a.svc.Objects().Filter(f)
	if active {
		return qs.Activate(ctx)
	}
	return qs.Deactivate(ctx)
}

func (a *modelAdmin[T]) BulkDelete(ctx context.Context, f ListFilter, force bool) (int64, error) {
	return a.svc.Objects().Filter(f).Delete(ctx, force)
}

// Admins indexes ModelAdmins by record type name.
type Admins struct {
	byName map[string]ModelAdmin
	order  []string
}

func NewAdmins(admins ...ModelAdmin) *Admins {
	a := &Admins{byName: make(map[string]ModelAdmin, len(admins))}
	for _, m := range admins {
		a.Add(m)
	}
	return a
}

// Add registers m, replacing an earlier admin of the same name.
func (a *Admins) Add(m ModelAdmin) {
	if _, exists := a.byName[m.Name()]; !exists {
		a.order = append(a.order, m.Name())
	}
	a.byName[m.Name()] = m
}

// Get returns the admin for name.
func (a *Admins) Get(name string) (ModelAdmin, error) {
	m, ok := a.byName[name]
	if !ok {
		return nil, apperror.NewNotFound("model", name)
	}
	return m, nil
}

// All returns admins in registration order.
func (a *Admins) All() []ModelAdmin {
	out := make([]ModelAdmin, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.byName[name])
	}
	return out
}
