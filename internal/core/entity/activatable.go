package entity

import "sync/atomic"

// DefaultActivatableField is the flag column used when a type does not name its own.
const DefaultActivatableField = "is_active"

var defaultField atomic.Pointer[string]

// SetDefaultActivatableField changes the process-wide fallback flag column.
// An empty name restores is_active. Call it before registering models.
func SetDefaultActivatableField(name string) {
	if name == "" {
		defaultField.Store(nil)
		return
	}
	defaultField.Store(&name)
}

// DefaultField returns the current fallback flag column.
func DefaultField() string {
	if p := defaultField.Load(); p != nil {
		return *p
	}
	return DefaultActivatableField
}

// Activatable is a record whose deletion is expressed by clearing an active flag.
// Repositories never remove such rows unless a forced delete is requested.
type Activatable interface {
	Record
	IsActivated() bool
	SetActivated(active bool)
}

// ActivatableFieldNamer lets a type store its flag under a column other than is_active.
type ActivatableFieldNamer interface {
	ActivatableFieldName() string
}

// CascadeDeleteAllower lets a type keep ON DELETE CASCADE relationships.
// Types that do not implement it are rejected at start-up if any relation cascades.
type CascadeDeleteAllower interface {
	AllowCascadeDelete() bool
}

// ActivatableField returns the flag column name for v.
func ActivatableField(v any) string {
	if n, ok := v.(ActivatableFieldNamer); ok {
		if name := n.ActivatableFieldName(); name != "" {
			return name
		}
	}
	return DefaultField()
}

// AllowsCascadeDelete reports whether v opted in to cascading relationships.
func AllowsCascadeDelete(v any) bool {
	if a, ok := v.(CascadeDeleteAllower); ok {
		return a.AllowCascadeDelete()
	}
	return false
}

// BaseActivatable carries the default is_active flag. Embed it next to BaseEntity
// (or Catalog) to get an Activatable type. New records start inactive.
type BaseActivatable struct {
	IsActive bool `db:"is_active" json:"isActive"`
}

// IsActivated implements Activatable.
func (a *BaseActivatable) IsActivated() bool {
	return a.IsActive
}

// SetActivated implements Activatable.
func (a *BaseActivatable) SetActivated(active bool) {
	a.IsActive = active
}
