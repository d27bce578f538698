package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/activation"
	"activatable/internal/core/id"
)

func TestNewOutboxMessage(t *testing.T) {
	first, second := id.New(), id.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := activation.Event{
		Kind:        activation.KindUpdated,
		Model:       "Warehouse",
		InstanceIDs: []id.ID{first, second},
		IsActive:    true,
		OccurredAt:  at,
	}

	msg, err := newOutboxMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, "Warehouse", msg.AggregateType)
	assert.Equal(t, first, msg.AggregateID)
	assert.Equal(t, "activation.updated", msg.EventType)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.Equal(t, at, msg.CreatedAt)

	decoded, err := msg.Event()
	require.NoError(t, err)
	assert.Equal(t, []id.ID{first, second}, decoded.InstanceIDs)
	assert.True(t, decoded.IsActive)
}

func TestNewOutboxMessage_RequiresInstances(t *testing.T) {
	_, err := newOutboxMessage(activation.Event{Kind: activation.KindChanged, Model: "Unit"})
	assert.Error(t, err)
}

func TestOutboxPublisher_Record(t *testing.T) {
	ev := activation.Event{
		Kind:        activation.KindChanged,
		Model:       "Unit",
		InstanceIDs: []id.ID{id.New()},
	}

	t.Run("requires transaction", func(t *testing.T) {
		p := NewOutboxPublisher(NewTxManagerFromRawPool(nil))
		err := p.Record(context.Background(), ev)
		assert.EqualError(t, err, "outbox publish requires transaction context")
	})

	t.Run("filtered out events are skipped", func(t *testing.T) {
		cond, err := activation.CompileCondition(`model == "Warehouse"`)
		require.NoError(t, err)

		p := NewOutboxPublisher(NewTxManagerFromRawPool(nil), WithOutboxFilter(cond))
		assert.NoError(t, p.Record(context.Background(), ev))
	})
}

func TestSignalHandler_Handle(t *testing.T) {
	signals := activation.NewSignals()
	var got []activation.Event
	signals.Changed.Connect(activation.ReceiverFunc(func(ctx context.Context, ev activation.Event) error {
		got = append(got, ev)
		return nil
	}))

	instance := id.New()
	msg, err := newOutboxMessage(activation.Event{
		Kind:        activation.KindChanged,
		Model:       "Warehouse",
		InstanceIDs: []id.ID{instance},
	})
	require.NoError(t, err)

	h := NewSignalHandler(signals)
	require.NoError(t, h.Handle(context.Background(), &msg))

	require.Len(t, got, 1)
	assert.Equal(t, "Warehouse", got[0].Model)
	assert.Equal(t, []id.ID{instance}, got[0].InstanceIDs)

	t.Run("unknown event type", func(t *testing.T) {
		bad := msg
		bad.EventType = "activation.renamed"
		assert.Error(t, h.Handle(context.Background(), &bad))
	})

	t.Run("corrupt payload", func(t *testing.T) {
		bad := msg
		bad.Payload = json.RawMessage(`{`)
		assert.Error(t, h.Handle(context.Background(), &bad))
	})

	t.Run("receiver failure is returned", func(t *testing.T) {
		signals.Changed.Connect(activation.ReceiverFunc(func(ctx context.Context, ev activation.Event) error {
			return errors.New("broker down")
		}))
		assert.ErrorContains(t, h.Handle(context.Background(), &msg), "broker down")
	})
}

func TestNextRetryAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Minute), nextRetryAt(now, 0))
	assert.Equal(t, now.Add(3*time.Minute), nextRetryAt(now, 2))
}
