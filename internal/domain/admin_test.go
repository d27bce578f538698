package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/domain"
)

func newGadgetAdmin(f *fixture) domain.ModelAdmin {
	return domain.NewModelAdmin(f.svc, func() *gadget {
		return &gadget{Catalog: entity.Catalog{BaseEntity: entity.NewBaseEntity()}}
	})
}

func TestModelAdmin_CreateAndUpdateFromJSON(t *testing.T) {
	f := newFixture(t)
	admin := newGadgetAdmin(f)
	ctx := context.Background()

	created, err := admin.Create(ctx, []byte(`{"code":"G1","name":"First","isActive":true,"color":"red"}`))
	require.NoError(t, err)
	g := created.(*gadget)
	assert.False(t, id.IsNil(g.ID))
	assert.Equal(t, "red", g.Color)
	require.Len(t, f.changed.all(), 1)

	updated, err := admin.Update(ctx, g.ID, []byte(`{"color":"blue"}`))
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.(*gadget).Color)
	assert.Equal(t, "First", updated.(*gadget).Name)
	assert.Len(t, f.changed.all(), 1, "flag unchanged")
}

func TestModelAdmin_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	admin := newGadgetAdmin(f)
	ctx := context.Background()
	g := newGadget("G1", true)
	f.seed(t, g)

	_, err := admin.Create(ctx, []byte(`{"code":`))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = admin.Update(ctx, g.ID, []byte(`{"id":"`+id.New().String()+`"}`))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = admin.Get(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestModelAdmin_DecodeDoesNotSave(t *testing.T) {
	f := newFixture(t)
	admin := newGadgetAdmin(f)
	ctx := context.Background()

	m, err := admin.Decode(ctx, []byte(`{"code":"G1","name":"First","isActive":true}`))
	require.NoError(t, err)
	assert.True(t, m.IsActivated())
	assert.Equal(t, 0, f.repo.Len())
	assert.Empty(t, f.changed.all())

	_, err = admin.Decode(ctx, []byte(`{"code":"G2"}`))
	assert.Error(t, err, "name is required")
}

func TestModelAdmin_ListErasesType(t *testing.T) {
	f := newFixture(t)
	admin := newGadgetAdmin(f)
	f.seed(t, newGadget("A", true), newGadget("B", false))

	active := true
	res, err := admin.List(context.Background(), domain.ListFilter{Active: &active, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "A", res.Items[0].(*gadget).Code)
}

func TestModelAdmin_BulkOperations(t *testing.T) {
	f := newFixture(t)
	admin := newGadgetAdmin(f)
	ctx := context.Background()
	a, b, c := newGadget("A", true), newGadget("B", false), newGadget("C", false)
	f.seed(t, a, b, c)

	n, err := admin.BulkSetActive(ctx, domain.ListFilter{IDs: []id.ID{a.ID, b.ID}}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	changed := f.changed.all()
	require.Len(t, changed, 1)
	assert.Equal(t, []id.ID{b.ID}, changed[0].InstanceIDs)
	assert.True(t, changed[0].IsActive)

	n, err = admin.BulkDelete(ctx, domain.ListFilter{IDs: []id.ID{c.ID}}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, f.repo.Len())
}

func TestAdmins_Lookup(t *testing.T) {
	f := newFixture(t)
	admins := domain.NewAdmins(newGadgetAdmin(f))

	got, err := admins.Get("Gadget")
	require.NoError(t, err)
	assert.Equal(t, "gadgets", got.Model().TableName)
	assert.Len(t, admins.All(), 1)

	_, err = admins.Get("Missing")
	assert.True(t, apperror.IsNotFound(err))
}
