package domain

import (
	"context"
	"fmt"

	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
)

// QuerySet is a lazily evaluated selection of records for bulk operations.
// Methods returning *QuerySet never modify the receiver.
type QuerySet[T Model] struct {
	svc    *ActivatableService[T]
	filter ListFilter
	none   bool
}

func (q *QuerySet[T]) clone() *QuerySet[T] {
	c := *q
	c.filter.IDs = append([]id.ID(nil), q.filter.IDs...)
	c.filter.AdvancedFilters = append(c.filter.AdvancedFilters[:0:0], q.filter.AdvancedFilters...)
	return &c
}

// Filter narrows the selection to records matching f. Pagination fields are ignored.
func (q *QuerySet[T]) Filter(f ListFilter) *QuerySet[T] {
	c := q.clone()
	if f.Search != "" {
		c.filter.Search = f.Search
	}
	if f.Active != nil {
		active := *f.Active
		c.filter.Active = &active
	}
	if f.IDs != nil {
		c = c.WithIDs(f.IDs...)
	}
	c.filter.AdvancedFilters = append(c.filter.AdvancedFilters, f.AdvancedFilters...)
	return c
}

// WithIDs narrows the selection to the given IDs. An empty list selects nothing.
// Calling it again keeps only IDs present in both lists.
func (q *QuerySet[T]) WithIDs(ids ...id.ID) *QuerySet[T] {
	c := q.clone()
	if len(c.filter.IDs) > 0 {
		keep := make(map[id.ID]struct{}, len(c.filter.IDs))
		for _, v := range c.filter.IDs {
			keep[v] = struct{}{}
		}
		var both []id.ID
		for _, v := range ids {
			if _, ok := keep[v]; ok {
				both = append(both, v)
			}
		}
		ids = both
	}
	if len(ids) == 0 {
		c.none = true
		c.filter.IDs = nil
		return c
	}
	c.filter.IDs = append([]id.ID(nil), ids...)
	return c
}

// WhereActive narrows the selection by flag value.
func (q *QuerySet[T]) WhereActive(active bool) *QuerySet[T] {
	return q.Filter(ListFilter{Active: &active})
}

// ListFilter returns the filter the query set applies.
func (q *QuerySet[T]) ListFilter() ListFilter {
	return q.clone().filter
}

// IDs returns the IDs of matching records.
func (q *QuerySet[T]) IDs(ctx context.Context) ([]id.ID, error) {
	if q.none {
		return nil, nil
	}
	return q.svc.repo.SelectIDs(ctx, q.filter)
}

// Update applies column values to every matching record.
//
// When values contain the flag column the matching IDs are captured first and split
// into those whose flag will change and those merely touched. After commit
// activation updated is sent with every touched ID and activation changed with the
// changed ones. Empty sets send nothing. Before-bulk-update hooks see the touched
// IDs and may refuse the whole write.
func (q *QuerySet[T]) Update(ctx context.Context, values map[string]any) (int64, error) {
	active, touchesFlag, err := q.svc.checkValues(values)
	if err != nil {
		return 0, err
	}
	if q.none {
		return 0, nil
	}

	hooked := q.svc.hooks.HasBulk(BeforeBulkUpdate)

	var affected int64
	err = q.svc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if !touchesFlag && !hooked {
			n, err := q.svc.repo.UpdateWhere(ctx, q.filter, values)
			if err != nil {
				return fmt.Errorf("update %s: %w", q.svc.model.Name, err)
			}
			affected = n
			return nil
		}

		changed, touched, err := q.svc.repo.Partition(ctx, q.filter, active)
		if err != nil {
			return fmt.Errorf("select %s for update: %w", q.svc.model.Name, err)
		}
		if len(touched) == 0 {
			return nil
		}
		if err := q.svc.hooks.RunBulk(ctx, BeforeBulkUpdate, touched, values); err != nil {
			return err
		}

		n, err := q.svc.repo.UpdateWhere(ctx, ListFilter{IDs: touched}, values)
		if err != nil {
			return fmt.Errorf("update %s: %w", q.svc.model.Name, err)
		}
		affected = n

		if !touchesFlag {
			return nil
		}
		if err := q.svc.dispatcher.Updated(ctx, q.svc.model.Name, touched, active); err != nil {
			return err
		}
		return q.svc.dispatcher.Changed(ctx, q.svc.model.Name, changed, active)
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// Activate sets the flag to true on every matching record.
func (q *QuerySet[T]) Activate(ctx context.Context) (int64, error) {
	return q.Update(ctx, map[string]any{q.svc.model.ActivatableField: true})
}

// Deactivate sets the flag to false on every matching record.
func (q *QuerySet[T]) Deactivate(ctx context.Context) (int64, error) {
	return q.Update(ctx, map[string]any{q.svc.model.ActivatableField: false})
}

// Delete deactivates every matching record, or removes the rows when force is set.
// A forced delete emits no activation events.
func (q *QuerySet[T]) Delete(ctx context.Context, force bool) (int64, error) {
	if !force {
		return q.Deactivate(ctx)
	}
	if q.none {
		return 0, nil
	}

	var affected int64
	err := q.svc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		f := q.filter
		if q.svc.hooks.HasBulk(BeforeBulkDelete) {
			ids, err := q.svc.repo.SelectIDs(ctx, f)
			if err != nil {
				return fmt.Errorf("select %s for delete: %w", q.svc.model.Name, err)
			}
			if len(ids) == 0 {
				return nil
			}
			if err := q.svc.hooks.RunBulk(ctx, BeforeBulkDelete, ids, nil); err != nil {
				return err
			}
			f = ListFilter{IDs: ids}
		}

		n, err := q.svc.repo.DeleteWhere(ctx, f)
		if err != nil {
			if apperror.HasCode(err, apperror.CodeProtected) {
				return err
			}
			return fmt.Errorf("delete %s: %w", q.svc.model.Name, err)
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// checkValues validates a bulk update and extracts the new flag value.
func (s *ActivatableService[T]) checkValues(values map[string]any) (active bool, touchesFlag bool, err error) {
	if len(values) == 0 {
		return false, false, apperror.NewValidation("no values to update")
	}

	for col := range values {
		if col == "id" || col == "version" {
			return false, false, apperror.NewValidation(fmt.Sprintf("column %s cannot be updated", col)).
				WithDetail("field", col)
		}
		if _, ok := s.model.Field(col); !ok {
			return false, false, apperror.NewValidation(fmt.Sprintf("unknown column %s", col)).
				WithDetail("field", col)
		}
	}

	raw, touchesFlag := values[s.model.ActivatableField]
	if !touchesFlag {
		return false, false, nil
	}
	active, ok := raw.(bool)
	if !ok {
		return false, false, apperror.NewValidation(
			fmt.Sprintf("%s must be a boolean", s.model.ActivatableField)).
			WithDetail("field", s.model.ActivatableField)
	}
	return active, true, nil
}
