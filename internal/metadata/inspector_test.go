package metadata

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/core/entity"
	"activatable/internal/core/id"
)

type inspectedShelf struct {
	entity.Catalog
	entity.BaseActivatable

	RoomID    id.ID           `db:"room_id" json:"roomId" ref:"rooms(id)" on_delete:"set_null"`
	OwnerID   *id.ID          `db:"owner_id" json:"ownerId,omitempty" ref:"owners" rel:"one_to_one" on_delete:"protect"`
	Capacity  decimal.Decimal `db:"capacity" json:"capacity"`
	Position  int             `db:"position"`
	Transient string          `db:"-"`
}

type inspectedSwitch struct {
	entity.BaseEntity
	Enabled bool    `db:"enabled" json:"enabled"`
	Parent  *string `db:"parent_code" ref:"switches(code)"`
}

func (s *inspectedSwitch) IsActivated() bool            { return s.Enabled }
func (s *inspectedSwitch) SetActivated(active bool)     { s.Enabled = active }
func (s *inspectedSwitch) ActivatableFieldName() string { return "enabled" }
func (s *inspectedSwitch) AllowCascadeDelete() bool     { return true }

func TestInspect_FlattensEmbeddedStructs(t *testing.T) {
	def := Inspect(inspectedShelf{}, "Shelf", "cat_shelves")

	assert.Equal(t, "Shelf", def.Name)
	assert.Equal(t, "cat_shelves", def.TableName)
	assert.Equal(t,
		[]string{"id", "version", "code", "name", "is_active", "room_id", "owner_id", "capacity", "position"},
		def.Columns())

	flag, ok := def.Field("is_active")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, flag.Type)
	assert.False(t, flag.Nullable)
	assert.Equal(t, "isActive", flag.Name)

	pos, ok := def.Field("position")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, pos.Type)
	assert.Equal(t, "position", pos.Name)

	capacity, _ := def.Field("capacity")
	assert.Equal(t, TypeNumber, capacity.Type)

	idField, _ := def.Field("id")
	assert.Equal(t, TypeID, idField.Type)
	assert.True(t, idField.ReadOnly)
}

func TestInspect_Relations(t *testing.T) {
	def := Inspect(&inspectedShelf{}, "Shelf", "cat_shelves")

	require.Len(t, def.Relations, 2)

	assert.Equal(t, RelationDef{
		Column:    "room_id",
		Kind:      RelationForeignKey,
		RefTable:  "rooms",
		RefColumn: "id",
		OnDelete:  OnDeleteSetNull,
	}, def.Relations[0])

	assert.Equal(t, RelationDef{
		Column:    "owner_id",
		Kind:      RelationOneToOne,
		RefTable:  "owners",
		RefColumn: "id",
		OnDelete:  OnDeleteProtect,
	}, def.Relations[1])

	owner, _ := def.Field("owner_id")
	assert.Equal(t, TypeReference, owner.Type)
	assert.Equal(t, "owners", owner.ReferenceType)
	assert.True(t, owner.Nullable)
}

func TestInspect_ActivatableOptions(t *testing.T) {
	shelf := Inspect(inspectedShelf{}, "Shelf", "cat_shelves")
	assert.True(t, shelf.Activatable)
	assert.Equal(t, entity.DefaultActivatableField, shelf.ActivatableField)
	assert.False(t, shelf.AllowCascadeDelete)

	sw := Inspect(inspectedSwitch{}, "", "switches")
	assert.Equal(t, "inspectedSwitch", sw.Name)
	assert.True(t, sw.Activatable)
	assert.Equal(t, "enabled", sw.ActivatableField)
	assert.True(t, sw.AllowCascadeDelete)

	require.Len(t, sw.Relations, 1)
	assert.Equal(t, OnDeleteCascade, sw.Relations[0].OnDelete)
	assert.Equal(t, "code", sw.Relations[0].RefColumn)

	plain := Inspect(entity.Catalog{}, "Plain", "plain")
	assert.False(t, plain.Activatable)
	assert.Empty(t, plain.ActivatableField)
}

func TestParseOnDelete(t *testing.T) {
	tests := []struct {
		in   string
		want OnDelete
	}{
		{"", OnDeleteCascade},
		{"cascade", OnDeleteCascade},
		{"restrict", OnDeleteRestrict},
		{"set_null", OnDeleteSetNull},
		{"SET NULL", OnDeleteSetNull},
		{" no_action ", OnDeleteNoAction},
		{"do_nothing", OnDeleteDoNothing},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOnDelete(tt.in))
		})
	}
}
