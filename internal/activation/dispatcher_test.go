package activation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "activatable/internal/core/context"
	"activatable/internal/core/id"
	"activatable/internal/core/tx/inproc"
	"activatable/pkg/logger"
)

type memRecorder struct {
	events []Event
	err    error
}

func (r *memRecorder) Record(_ context.Context, ev Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func newTestDispatcher(rec Recorder) (*Dispatcher, *recordingReceiver, *recordingReceiver, *inproc.Manager) {
	txm := inproc.New()
	signals := NewSignals()
	changed := &recordingReceiver{}
	updated := &recordingReceiver{}
	signals.Changed.Connect(changed)
	signals.Updated.Connect(updated)

	opts := []DispatcherOption{WithLogger(logger.NewNop())}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	return NewDispatcher(signals, txm, opts...), changed, updated, txm
}

func TestDispatcher_SendsAfterCommit(t *testing.T) {
	rec := &memRecorder{}
	d, changed, updated, txm := newTestDispatcher(rec)
	ids := []id.ID{id.New(), id.New()}

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{ID: "ops", Source: "cli"})
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, d.Changed(ctx, "Warehouse", ids, false))
		require.NoError(t, d.Updated(ctx, "Warehouse", ids, false))

		assert.Empty(t, changed.events, "nothing sent before commit")
		assert.Len(t, rec.events, 2, "recorded inside the transaction")
		return nil
	})
	require.NoError(t, err)

	require.Len(t, changed.events, 1)
	require.Len(t, updated.events, 1)
	assert.Equal(t, ids, changed.events[0].InstanceIDs)
	assert.Equal(t, "ops", changed.events[0].Actor)
	assert.Equal(t, KindUpdated, updated.events[0].Kind)
}

func TestDispatcher_RollbackDropsEvents(t *testing.T) {
	d, changed, _, txm := newTestDispatcher(nil)
	boom := errors.New("boom")

	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, d.Changed(ctx, "Unit", []id.ID{id.New()}, true))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, changed.events)
}

func TestDispatcher_EmptyIDsEmitNothing(t *testing.T) {
	rec := &memRecorder{}
	d, changed, updated, _ := newTestDispatcher(rec)

	require.NoError(t, d.Changed(context.Background(), "Unit", nil, true))
	require.NoError(t, d.Updated(context.Background(), "Unit", []id.ID{}, true))

	assert.Empty(t, changed.events)
	assert.Empty(t, updated.events)
	assert.Empty(t, rec.events)
}

func TestDispatcher_RecorderFailureAborts(t *testing.T) {
	boom := errors.New("outbox down")
	d, changed, _, txm := newTestDispatcher(&memRecorder{err: boom})

	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return d.Changed(ctx, "Unit", []id.ID{id.New()}, true)
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, changed.events)
}

func TestDispatcher_OutsideTransactionSendsImmediately(t *testing.T) {
	d, changed, _, _ := newTestDispatcher(nil)
	require.NoError(t, d.Changed(context.Background(), "Unit", []id.ID{id.New()}, true))
	assert.Len(t, changed.events, 1)
}

func TestDispatcher_ReceiverFailureDoesNotFailCommit(t *testing.T) {
	d, _, _, txm := newTestDispatcher(nil)
	d.Signals().Changed.Connect(&recordingReceiver{err: errors.New("receiver down")})

	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return d.Changed(ctx, "Unit", []id.ID{id.New()}, true)
	})
	assert.NoError(t, err)
}
