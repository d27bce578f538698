package postgres

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/core/apperror"
)

func TestIdempotencyStore_ResolveExisting(t *testing.T) {
	s := NewIdempotencyStore(NewTxManagerFromRawPool(nil), 10*time.Minute)
	now := time.Now().UTC()
	stored := IdempotencyRecord{
		Key:         "k1",
		Actor:       "admin",
		Operation:   "POST /api/v1/warehouses/bulk/activate",
		RequestHash: "abc",
		UpdatedAt:   now,
	}

	t.Run("mismatched request", func(t *testing.T) {
		_, err := s.resolveExisting(context.Background(), stored, "admin", stored.Operation, "other", now)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("pending is a conflict", func(t *testing.T) {
		rec := stored
		rec.Status = IdempotencyStatusPending
		_, err := s.resolveExisting(context.Background(), rec, "admin", rec.Operation, "abc", now)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Operation already in progress or completed", appErr.Message)
	})

	t.Run("completed is replayed", func(t *testing.T) {
		rec := stored
		rec.Status = IdempotencyStatusSuccess
		rec.Response = []byte(`{"touched":2}`)
		replay, err := s.resolveExisting(context.Background(), rec, "admin", rec.Operation, "abc", now)
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, http.StatusOK, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
		assert.JSONEq(t, `{"touched":2}`, string(replay.Body))
	})

	t.Run("failed keeps its status", func(t *testing.T) {
		rec := stored
		rec.Status = IdempotencyStatusFailed
		rec.StatusCode = http.StatusConflict
		replay, err := s.resolveExisting(context.Background(), rec, "admin", rec.Operation, "abc", now)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, replay.StatusCode)
	})
}
