package activation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/core/id"
)

func TestCompileCondition(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		ev      Event
		want    bool
		wantErr bool
	}{
		{
			name: "model and flag",
			expr: `model == "Warehouse" && !is_active`,
			ev:   Event{Model: "Warehouse", IsActive: false},
			want: true,
		},
		{
			name: "count",
			expr: `count > 1`,
			ev:   Event{InstanceIDs: []id.ID{id.New()}},
			want: false,
		},
		{
			name: "kind",
			expr: `kind == "activation.updated"`,
			ev:   Event{Kind: KindUpdated},
			want: true,
		},
		{
			name: "ids membership",
			expr: `"00000000-0000-0000-0000-000000000001" in ids`,
			ev:   Event{InstanceIDs: []id.ID{id.MustParse("00000000-0000-0000-0000-000000000001")}},
			want: true,
		},
		{
			name:    "not bool",
			expr:    `count + 1`,
			wantErr: true,
		},
		{
			name:    "syntax error",
			expr:    `model ==`,
			wantErr: true,
		},
		{
			name:    "unknown variable",
			expr:    `tenant == "x"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := CompileCondition(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, cond.String())

			got, err := cond.Match(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithCondition(t *testing.T) {
	rec := &recordingReceiver{}
	filtered, err := WithCondition(`is_active`, rec)
	require.NoError(t, err)

	sig := NewSignal(KindChanged)
	sig.Connect(filtered)

	ctx := context.Background()
	require.NoError(t, sig.Send(ctx, Event{Model: "Unit", IsActive: false}))
	require.NoError(t, sig.Send(ctx, Event{Model: "Unit", IsActive: true}))

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].IsActive)

	_, err = WithCondition(`nope(`, rec)
	assert.Error(t, err)
}
