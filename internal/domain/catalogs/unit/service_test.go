package unit_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/activation"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/core/tx/inproc"
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/infrastructure/storage/memory"
	"activatable/pkg/logger"
)

type eventLog struct {
	mu     sync.Mutex
	events []activation.Event
}

func (l *eventLog) Receive(_ context.Context, ev activation.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) all() []activation.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]activation.Event(nil), l.events...)
}

type fixture struct {
	svc     *unit.Service
	repo    *memory.Repo[*unit.Unit]
	changed *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	def := unit.Definition()
	repo := memory.NewRepo(def.Name, def.ActivatableField, func() *unit.Unit { return &unit.Unit{} })
	txm := inproc.New()
	signals := activation.NewSignals()
	changed := &eventLog{}
	signals.Changed.Connect(changed)

	dispatcher := activation.NewDispatcher(signals, txm, activation.WithLogger(logger.NewNop()))
	return &fixture{
		svc:     unit.NewService(repo, txm, dispatcher, logger.NewNop()),
		repo:    repo,
		changed: changed,
	}
}

// kilogramAndGram stores an enabled base unit and an enabled unit converting to it.
func (f *fixture) kilogramAndGram(t *testing.T) (*unit.Unit, *unit.Unit) {
	t.Helper()
	ctx := context.Background()

	kg := unit.NewUnit("KG", "Kilogram", "kg", unit.TypeWeight)
	require.NoError(t, f.svc.Create(ctx, kg))

	g := unit.NewUnit("G", "Gram", "g", unit.TypeWeight)
	g.IsBase = false
	g.BaseUnitID = &kg.ID
	g.ConversionFactor = decimal.RequireFromString("0.001")
	require.NoError(t, f.svc.Create(ctx, g))
	return kg, g
}

func (f *fixture) enabled(t *testing.T, unitID id.ID) bool {
	t.Helper()
	u, err := f.svc.GetByID(context.Background(), unitID)
	require.NoError(t, err)
	return u.IsEnabled
}

func TestService_FlagLivesInIsEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kg := unit.NewUnit("KG", "Kilogram", "kg", unit.TypeWeight)
	require.NoError(t, f.svc.Create(ctx, kg))

	assert.Equal(t, unit.FlagColumn, f.svc.Model().ActivatableField)

	_, err := f.svc.SetActive(ctx, kg.ID, false)
	require.NoError(t, err)
	assert.False(t, f.enabled(t, kg.ID))

	events := f.changed.all()
	require.Len(t, events, 2)
	assert.Equal(t, unit.Name, events[1].Model)
	assert.False(t, events[1].IsActive)
}

func TestService_SymbolIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Create(ctx, unit.NewUnit("KG", "Kilogram", "kg", unit.TypeWeight)))

	dup := unit.NewUnit("KG2", "Kilo", " kg ", unit.TypeWeight)
	err := f.svc.Create(ctx, dup)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	assert.Equal(t, 1, f.repo.Len())

	other := unit.NewUnit("M", "Metre", " m ", unit.TypeLength)
	require.NoError(t, f.svc.Create(ctx, other))
	assert.Equal(t, "m", other.Symbol)
}

func TestService_BaseUnitKeepsEnabledDerived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kg, g := f.kilogramAndGram(t)

	_, err := f.svc.SetActive(ctx, kg.ID, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	err = f.svc.Delete(ctx, kg.ID, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.True(t, f.enabled(t, kg.ID))

	_, err = f.svc.SetActive(ctx, g.ID, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, kg.ID, false))
	assert.False(t, f.enabled(t, kg.ID))
}

func TestService_BulkDisableChecksDerivedOutsideBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kg, g := f.kilogramAndGram(t)
	before := len(f.changed.all())

	_, err := f.svc.Objects().WithIDs(kg.ID).Deactivate(ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = f.svc.Objects().WithIDs(kg.ID).Delete(ctx, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = f.svc.Objects().WithIDs(kg.ID).Delete(ctx, true)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.True(t, f.enabled(t, kg.ID))
	assert.Equal(t, 2, f.repo.Len())
	assert.Len(t, f.changed.all(), before)

	n, err := f.svc.Objects().WithIDs(kg.ID, g.ID).Deactivate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.False(t, f.enabled(t, kg.ID))
	assert.False(t, f.enabled(t, g.ID))

	events := f.changed.all()
	require.Len(t, events, before+1)
	assert.ElementsMatch(t, []id.ID{kg.ID, g.ID}, events[before].InstanceIDs)
}

func TestService_BulkSymbolUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kg, g := f.kilogramAndGram(t)

	_, err := f.svc.Objects().WithIDs(kg.ID, g.ID).Update(ctx, map[string]any{"symbol": "x"})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	_, err = f.svc.Objects().WithIDs(g.ID).Update(ctx, map[string]any{"symbol": "kg"})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	n, err := f.svc.Objects().WithIDs(g.ID).Update(ctx, map[string]any{"symbol": "gr"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	stored, err := f.svc.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "gr", stored.Symbol)
}

func TestService_PrepareImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Create(ctx, unit.NewUnit("KG", "Kilogram", "kg", unit.TypeWeight)))

	a := unit.NewUnit("M", "Metre", "m", unit.TypeLength)
	b := unit.NewUnit("M2", "Meter", "m ", unit.TypeLength)
	err := f.svc.PrepareImport(ctx, []*unit.Unit{a, b})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	c := unit.NewUnit("KG2", "Kilo", "kg", unit.TypeWeight)
	err = f.svc.PrepareImport(ctx, []*unit.Unit{a, c})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
	assert.Equal(t, 1, appErr.Details["record"])

	b.Symbol = "cm"
	require.NoError(t, f.svc.PrepareImport(ctx, []*unit.Unit{a, b}))
	assert.Equal(t, 1, f.repo.Len(), "prepare writes nothing")
}
