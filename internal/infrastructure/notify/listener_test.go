package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListener_ListenSQL(t *testing.T) {
	l := NewListener(nil, OutboxChannel, "audit")
	assert.Equal(t, `LISTEN "activatable_outbox"; LISTEN "audit"`, l.listenSQL())
}

func TestListener_DispatchRecoversPanics(t *testing.T) {
	l := NewListener(nil, OutboxChannel)

	var got []string
	l.Subscribe(func(channel, payload string) { panic("boom") })
	l.Subscribe(func(channel, payload string) { got = append(got, channel+":"+payload) })

	assert.NotPanics(t, func() { l.dispatch(OutboxChannel, "Warehouse") })
	assert.Equal(t, []string{"activatable_outbox:Warehouse"}, got)
}

func TestListener_StartWithoutChannels(t *testing.T) {
	l := NewListener(nil)
	assert.Error(t, l.Start(t.Context()))
}

func TestWakeup_DoesNotBlock(t *testing.T) {
	ch := make(chan struct{}, 1)
	h := Wakeup(ch)

	h(OutboxChannel, "")
	h(OutboxChannel, "")

	assert.Len(t, ch, 1)
}

func TestListener_StopBeforeStart(t *testing.T) {
	l := NewListener(nil, OutboxChannel)
	assert.NotPanics(t, l.Stop)
}
