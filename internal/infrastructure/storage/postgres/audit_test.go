package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/activation"
	"activatable/internal/core/id"
)

func TestAuditService_Entry(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	instance := id.New()
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	entry, err := s.Entry(activation.Event{
		Kind:        activation.KindChanged,
		Model:       "Unit",
		InstanceIDs: []id.ID{instance},
		IsActive:    false,
		Actor:       "admin",
		OccurredAt:  at,
	})
	require.NoError(t, err)

	assert.Equal(t, "Unit", entry.EntityType)
	assert.Equal(t, "activation.changed", entry.Action)
	assert.Equal(t, 1, entry.InstanceCount)
	assert.Equal(t, "admin", entry.Actor)
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.Equal(t, at, entry.CreatedAt)
	assert.Empty(t, entry.InstancesCompress)

	ids, err := s.Decode(entry)
	require.NoError(t, err)
	assert.Equal(t, []id.ID{instance}, ids)
}

func TestAuditService_CompressesLargeInstanceLists(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	instances := make([]id.ID, 1000)
	for i := range instances {
		instances[i] = id.New()
	}

	entry, err := s.Entry(activation.Event{
		Kind:        activation.KindUpdated,
		Model:       "Warehouse",
		InstanceIDs: instances,
		IsActive:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Instances)
	assert.NotEmpty(t, entry.InstancesCompress)
	assert.False(t, entry.CreatedAt.IsZero())

	ids, err := s.Decode(entry)
	require.NoError(t, err)
	assert.Equal(t, instances, ids)
}
