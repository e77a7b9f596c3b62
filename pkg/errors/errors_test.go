package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewExternalError("ml service call failed", stderrors.New("connection refused"))

	assert.Equal(t, "EXTERNAL: ml service call failed: connection refused", err.Error())
	assert.Equal(t, "NOT_FOUND: hospital not found", NewNotFoundError("hospital not found").Error())
}

func TestTypeOf_WalksWrappedChain(t *testing.T) {
	wrapped := fmt.Errorf("admit: %w", NewNotFoundError("hospital not found"))

	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.NotEqual(t, ErrorTypeExternal, TypeOf(wrapped))
}

func TestTypeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestAppError_UnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("timeout")
	err := NewExternalError("sms gateway", cause)

	assert.ErrorIs(t, err, cause)
}

func TestNewUpstreamUnavailableError(t *testing.T) {
	err := NewUpstreamUnavailableError("ML service", stderrors.New("dial tcp: refused"))

	assert.Equal(t, "ML service unavailable", err.Message)
	assert.Equal(t, ErrorTypeExternal, TypeOf(err))
}
