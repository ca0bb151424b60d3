package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzerError_Message(t *testing.T) {
	err := NewError(ErrNotFound, "unknown job id").WithContext("job_id", "abc-123")

	msg := err.Error()
	assert.Contains(t, msg, "NotFoundError")
	assert.Contains(t, msg, "unknown job id")
	assert.Contains(t, msg, "job_id=abc-123")
}

func TestAnalyzerError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrStorage, "persist new job")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsErrorType(t *testing.T) {
	err := NewError(ErrOverloaded, "queue full")

	assert.True(t, IsErrorType(err, ErrOverloaded))
	assert.False(t, IsErrorType(err, ErrTimeout))
	assert.False(t, IsErrorType(errors.New("plain"), ErrOverloaded))
	assert.False(t, IsErrorType(nil, ErrOverloaded))

	// Wrapped analyzer errors are still recognized by type.
	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, IsErrorType(wrapped, ErrOverloaded))
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "ValidationError", ErrValidation.String())
	assert.Equal(t, "TimeoutError", ErrTimeout.String())
	assert.Equal(t, "Interrupted", ErrInterrupted.String())
	assert.Equal(t, "Unknown", ErrorType(99).String())
}

func TestSafeExecute(t *testing.T) {
	require.NoError(t, SafeExecute(func() error { return nil }))

	sentinel := errors.New("boom")
	assert.ErrorIs(t, SafeExecute(func() error { return sentinel }), sentinel)

	err := SafeExecute(func() error { panic("model backend exploded") })
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrUnknown))
	assert.Contains(t, err.Error(), "model backend exploded")
}
