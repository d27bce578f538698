package activation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/core/id"
)

type recordingReceiver struct {
	events []Event
	err    error
}

func (r *recordingReceiver) Receive(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestSignal_SendStampsKindAndTime(t *testing.T) {
	sig := NewSignal(KindChanged)
	rec := &recordingReceiver{}
	sig.Connect(rec)

	ids := []id.ID{id.New()}
	require.NoError(t, sig.Send(context.Background(), Event{Model: "Warehouse", InstanceIDs: ids, IsActive: true}))

	require.Len(t, rec.events, 1)
	assert.Equal(t, KindChanged, rec.events[0].Kind)
	assert.Equal(t, ids, rec.events[0].InstanceIDs)
	assert.True(t, rec.events[0].IsActive)
	assert.False(t, rec.events[0].OccurredAt.IsZero())
}

func TestSignal_SenderFilter(t *testing.T) {
	sig := NewSignal(KindUpdated)
	all := &recordingReceiver{}
	units := &recordingReceiver{}
	sig.Connect(all)
	sig.Connect(units, Sender("Unit"))

	ctx := context.Background()
	require.NoError(t, sig.Send(ctx, Event{Model: "Warehouse"}))
	require.NoError(t, sig.Send(ctx, Event{Model: "Unit"}))

	assert.Len(t, all.events, 2)
	require.Len(t, units.events, 1)
	assert.Equal(t, "Unit", units.events[0].Model)

	assert.True(t, sig.HasReceivers("Anything"))
}

func TestSignal_DispatchUIDDeduplicates(t *testing.T) {
	sig := NewSignal(KindChanged)
	first := &recordingReceiver{}
	second := &recordingReceiver{}

	uid := sig.Connect(first, DispatchUID("audit"))
	assert.Equal(t, "audit", uid)
	sig.Connect(second, DispatchUID("audit"))

	require.NoError(t, sig.Send(context.Background(), Event{Model: "Unit"}))
	assert.Len(t, first.events, 1)
	assert.Empty(t, second.events)

	assert.True(t, sig.Disconnect("audit"))
	assert.False(t, sig.Disconnect("audit"))
	assert.False(t, sig.HasReceivers("Unit"))
}

func TestSignal_ReceiverErrorsAreJoined(t *testing.T) {
	sig := NewSignal(KindChanged)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &recordingReceiver{err: errA}
	b := &recordingReceiver{err: errB}
	ok := &recordingReceiver{}
	sig.Connect(a)
	sig.Connect(ok)
	sig.Connect(b)

	err := sig.Send(context.Background(), Event{Model: "Unit"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, ok.events, 1, "later receivers still run")
}

func TestSignal_OrderIsRegistrationOrder(t *testing.T) {
	sig := NewSignal(KindChanged)
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		sig.Connect(ReceiverFunc(func(context.Context, Event) error {
			order = append(order, name)
			return nil
		}))
	}

	require.NoError(t, sig.Send(context.Background(), Event{}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSignals_Get(t *testing.T) {
	s := NewSignals()
	assert.Same(t, s.Changed, s.Get(KindChanged))
	assert.Same(t, s.Updated, s.Get(KindUpdated))
	assert.Nil(t, s.Get("other"))
}
