package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestActor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetActor(ctx))
	assert.Equal(t, "", GetActorID(ctx))

	ctx = WithActor(ctx, &Actor{ID: "ops", Source: "cli"})
	assert.Equal(t, "ops", GetActorID(ctx))
	assert.Equal(t, "cli", GetActor(ctx).Source)
}

func TestTrace_Defaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))
	assert.NotEmpty(t, GetTraceID(ctx))

	tc := NewTraceContext(ctx, "")
	assert.NotEmpty(t, tc.RequestID)
	assert.Empty(t, tc.SpanID, "no active span")
	ctx = WithTrace(ctx, tc)
	assert.Equal(t, tc.TraceID, GetTraceID(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
}

func TestTrace_FromActiveSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x0a, 0x0b},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, sc.TraceID().String(), GetTraceID(ctx))

	tc := NewTraceContext(ctx, "req-1")
	assert.Equal(t, "req-1", tc.RequestID)
	assert.Equal(t, sc.TraceID().String(), tc.TraceID)
	assert.Equal(t, sc.SpanID().String(), tc.SpanID)
}
