package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type plainActivatable struct {
	BaseEntity
	BaseActivatable
}

type enabledFlag struct {
	BaseEntity
	IsEnabled bool `db:"is_enabled"`
}

func (e *enabledFlag) IsActivated() bool            { return e.IsEnabled }
func (e *enabledFlag) SetActivated(v bool)          { e.IsEnabled = v }
func (e *enabledFlag) ActivatableFieldName() string { return "is_enabled" }
func (e *enabledFlag) AllowCascadeDelete() bool     { return true }

func TestActivatableField(t *testing.T) {
	assert.Equal(t, "is_active", ActivatableField(&plainActivatable{}))
	assert.Equal(t, "is_enabled", ActivatableField(&enabledFlag{}))
}

func TestAllowsCascadeDelete(t *testing.T) {
	assert.False(t, AllowsCascadeDelete(&plainActivatable{}))
	assert.True(t, AllowsCascadeDelete(&enabledFlag{}))
}

func TestBaseActivatable_DefaultsInactive(t *testing.T) {
	var r Activatable = &plainActivatable{BaseEntity: NewBaseEntity()}
	assert.False(t, r.IsActivated())

	r.SetActivated(true)
	assert.True(t, r.IsActivated())
}

func TestSetDefaultActivatableField(t *testing.T) {
	t.Cleanup(func() { SetDefaultActivatableField("") })

	SetDefaultActivatableField("active")
	assert.Equal(t, "active", DefaultField())
	assert.Equal(t, "active", ActivatableField(&plainActivatable{}))
	assert.Equal(t, "is_enabled", ActivatableField(&enabledFlag{}))

	SetDefaultActivatableField("")
	assert.Equal(t, DefaultActivatableField, DefaultField())
}
