// Package memory is an in-process implementation of domain.ActivatableRepository.
// It backs the server when no database is configured and the service tests.
// Rows are kept as column maps built from "db" tags, the same shape the SQL
// repositories write. A stored map is never mutated; writes replace it.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
	"activatable/internal/infrastructure/storage/rowmap"
)

// errForeignKey stands in for the database error raised by a referencing row.
var errForeignKey = errors.New("row is referenced by another table")

type row map[string]any

// Repo stores one record type.
type Repo[T entity.Activatable] struct {
	name  string
	flag  string
	newFn func() T

	mu        sync.RWMutex
	rows      map[id.ID]row
	order     []id.ID
	protected map[id.ID]struct{}
}

// NewRepo creates an empty store for the type named name whose flag lives in
// flagColumn.
func NewRepo[T entity.Activatable](name, flagColumn string, newFn func() T) *Repo[T] {
	return &Repo[T]{
		name:      name,
		flag:      flagColumn,
		newFn:     newFn,
		rows:      make(map[id.ID]row),
		protected: make(map[id.ID]struct{}),
	}
}

// Protect marks ids as referenced from elsewhere so hard deletes fail.
func (r *Repo[T]) Protect(ids ...id.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range ids {
		r.protected[v] = struct{}{}
	}
}

// Len returns the number of stored rows.
func (r *Repo[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func (r *Repo[T]) materialize(data row) (T, error) {
	e := r.newFn()
	if err := rowmap.Set(e, data); err != nil {
		return e, fmt.Errorf("load %s: %w", r.name, err)
	}
	return e, nil
}

func version(data row) int {
	v, _ := data["version"].(int)
	return v
}

func (r *Repo[T]) Create(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := e.GetID()
	if _, ok := r.rows[key]; ok {
		return apperror.NewConflict(fmt.Sprintf("%s already exists", r.name)).WithDetail("id", key.String())
	}

	data := row(rowmap.ToMap(e))
	if data == nil {
		return fmt.Errorf("no db tags found in entity")
	}
	if version(data) == 0 {
		data["version"] = 1
		if err := rowmap.Set(e, map[string]any{"version": 1}); err != nil {
			return err
		}
	}
	r.rows[key] = data
	r.order = append(r.order, key)
	return nil
}

func (r *Repo[T]) Update(ctx context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := e.GetID()
	current, ok := r.rows[key]
	if !ok {
		return apperror.NewNotFound(r.name, key.String())
	}

	data := row(rowmap.ToMap(e))
	if version(data) != version(current) {
		return apperror.NewConcurrentModification(r.name, key.String())
	}

	next := version(current) + 1
	data["version"] = next
	if err := rowmap.Set(e, map[string]any{"version": next}); err != nil {
		return err
	}
	r.rows[key] = data
	return nil
}

func (r *Repo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.rows[entityID]
	if !ok {
		return r.newFn(), apperror.NewNotFound(r.name, entityID.String())
	}
	return r.materialize(data)
}

func (r *Repo[T]) StoredActivation(ctx context.Context, entityID id.ID) (bool, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.rows[entityID]
	if !ok {
		return false, false, nil
	}
	active, _ := data[r.flag].(bool)
	return active, true, nil
}

func (r *Repo[T]) SetActivation(ctx context.Context, entityID id.ID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.rows[entityID]
	if !ok {
		return apperror.NewNotFound(r.name, entityID.String())
	}
	next := maps.Clone(data)
	next[r.flag] = active
	next["version"] = version(data) + 1
	r.rows[entityID] = next
	return nil
}

func (r *Repo[T]) HardDelete(ctx context.Context, entityID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[entityID]; !ok {
		return apperror.NewNotFound(r.name, entityID.String())
	}
	if _, ok := r.protected[entityID]; ok {
		return apperror.NewProtected(r.name, entityID.String()).WithCause(errForeignKey)
	}
	r.remove(entityID)
	return nil
}

func (r *Repo[T]) remove(entityID id.ID) {
	delete(r.rows, entityID)
	for i, v := range r.order {
		if v == entityID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// matching returns IDs of rows matching f in insertion order. Callers hold the lock.
func (r *Repo[T]) matching(f domain.ListFilter) ([]id.ID, error) {
	var ids []id.ID
	for _, key := range r.order {
		ok, err := r.matches(r.rows[key], f)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, key)
		}
	}
	return ids, nil
}

func (r *Repo[T]) Partition(ctx context.Context, f domain.ListFilter, active bool) ([]id.ID, []id.ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	touched, err := r.matching(f)
	if err != nil {
		return nil, nil, err
	}

	var changed []id.ID
	for _, key := range touched {
		if current, _ := r.rows[key][r.flag].(bool); current != active {
			changed = append(changed, key)
		}
	}
	return changed, touched, nil
}

func (r *Repo[T]) UpdateWhere(ctx context.Context, f domain.ListFilter, values map[string]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.matching(f)
	if err != nil {
		return 0, err
	}

	updated := make(map[id.ID]row, len(ids))
	for _, key := range ids {
		e, err := r.materialize(r.rows[key])
		if err != nil {
			return 0, err
		}
		if err := rowmap.Set(e, values); err != nil {
			return 0, apperror.NewValidation(err.Error())
		}
		data := row(rowmap.ToMap(e))
		data["version"] = version(r.rows[key]) + 1
		updated[key] = data
	}

	for key, data := range updated {
		r.rows[key] = data
	}
	return int64(len(updated)), nil
}

func (r *Repo[T]) DeleteWhere(ctx context.Context, f domain.ListFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.matching(f)
	if err != nil {
		return 0, err
	}

	// Like a single DELETE statement: one referenced row fails the whole batch.
	for _, key := range ids {
		if _, ok := r.protected[key]; ok {
			return 0, apperror.NewProtected(r.name, key.String()).WithCause(errForeignKey)
		}
	}
	for _, key := range ids {
		r.remove(key)
	}
	return int64(len(ids)), nil
}

func (r *Repo[T]) SelectIDs(ctx context.Context, f domain.ListFilter) ([]id.ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matching(f)
}

func (r *Repo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  f.Limit,
		Offset: f.Offset,
		Items:  []T{},
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.matching(f)
	rows := make([]row, 0, len(ids))
	for _, key := range ids {
		rows = append(rows, r.rows[key])
	}
	if err != nil {
		return result, err
	}

	if err := sortRows(rows, f.OrderBy); err != nil {
		return result, err
	}

	result.TotalCount = int64(len(rows))
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[f.Offset:]
		}
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}

	for _, data := range rows {
		e, err := r.materialize(data)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, e)
	}
	return result, nil
}

func sortRows(rows []row, orderBy string) error {
	if orderBy == "" {
		orderBy = "name"
	}
	desc := strings.HasPrefix(orderBy, "-")
	col := strings.TrimPrefix(orderBy, "-")

	if len(rows) > 0 {
		if _, ok := rows[0][col]; !ok {
			if orderBy == "name" {
				return nil // types without a name keep insertion order
			}
			return apperror.NewValidation(fmt.Sprintf("invalid order by column: %s", col))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := fmt.Sprint(rows[i][col]), fmt.Sprint(rows[j][col])
		if desc {
			return a > b
		}
		return a < b
	})
	return nil
}

func (r *Repo[T]) matches(data row, f domain.ListFilter) (bool, error) {
	if len(f.IDs) > 0 {
		rowID, _ := data["id"].(id.ID)
		found := false
		for _, v := range f.IDs {
			if v == rowID {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if f.Active != nil {
		if active, _ := data[r.flag].(bool); active != *f.Active {
			return false, nil
		}
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		code, _ := data["code"].(string)
		name, _ := data["name"].(string)
		if !strings.Contains(strings.ToLower(code), needle) && !strings.Contains(strings.ToLower(name), needle) {
			return false, nil
		}
	}

	for _, item := range f.AdvancedFilters {
		ok, err := matchItem(data, item)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchItem(data row, item filter.Item) (bool, error) {
	val, ok := data[item.Field]
	if !ok {
		return false, apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field))
	}

	isNil := val == nil || fmt.Sprint(val) == "<nil>"
	text := fmt.Sprint(deref(val))

	switch item.Operator {
	case filter.Equal:
		return !isNil && text == fmt.Sprint(item.Value), nil
	case filter.NotEqual:
		return isNil || text != fmt.Sprint(item.Value), nil
	case filter.InList, filter.NotInList:
		in := false
		for _, v := range toList(item.Value) {
			if !isNil && text == fmt.Sprint(v) {
				in = true
				break
			}
		}
		return in == (item.Operator == filter.InList), nil
	case filter.Contains, filter.NotContains:
		has := !isNil && strings.Contains(strings.ToLower(text), strings.ToLower(fmt.Sprint(item.Value)))
		return has == (item.Operator == filter.Contains), nil
	case filter.IsNull:
		return isNil, nil
	case filter.IsNotNull:
		return !isNil, nil
	}
	return false, apperror.NewValidation(fmt.Sprintf("filter operator %s is not supported", item.Operator))
}

func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case []id.ID:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p != nil {
			return *p
		}
	case *id.ID:
		if p != nil {
			return *p
		}
	}
	return v
}
