package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInvalidModel_Message(t *testing.T) {
	err := NewInvalidModel("warehouse", "It must define an activatable boolean field.")

	assert.Equal(t, CodeInvalidModel, err.Code)
	assert.Equal(t, "Model warehouse is an activatable model. It must define an activatable boolean field.", err.Message)
	assert.Equal(t, "warehouse", err.Details["model"])
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	cause := errors.New("fk violation")
	wrapped := fmt.Errorf("delete warehouse: %w", NewProtected("warehouse", "42").WithCause(cause))

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeProtected, appErr.Code)
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("unit", "x")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.True(t, IsConcurrentModification(NewConcurrentModification("unit", "x")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}
