package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeDocumentInvalid, "bad check digit")
		assert.True(t, HasCode(err, CodeDocumentInvalid))
		assert.False(t, HasCode(err, CodeEmailInvalid))
	})

	t.Run("matches wrapped code through fmt chain", func(t *testing.T) {
		inner := New(CodeUnavailable, "store down")
		err := fmt.Errorf("submit step2: %w", inner)
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("matches inner code behind outer coded error", func(t *testing.T) {
		inner := New(CodeTimeout, "captcha timeout")
		outer := Wrap(inner, CodeUnavailable, "verification unavailable")
		assert.True(t, HasCode(outer, CodeUnavailable))
		assert.True(t, HasCode(outer, CodeTimeout))
	})

	t.Run("plain error carries no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeSessionNotFound, CodeOf(New(CodeSessionNotFound, "gone")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}

func TestFields(t *testing.T) {
	err := New(CodeFieldMissing, "required fields absent").
		WithField("email", "email is required").
		WithField("cnpj", "cnpj is required")

	fields := FieldsOf(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "email is required", fields["email"])

	assert.Nil(t, FieldsOf(errors.New("uncoded")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeUnavailable, "redis down")))
	assert.True(t, IsRetryable(New(CodeTimeout, "deadline")))
	assert.False(t, IsRetryable(New(CodeDocumentInvalid, "bad digit")))
	assert.False(t, IsRetryable(New(CodeDocumentAlreadyRegistered, "taken")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeFieldMissing, http.StatusBadRequest},
		{CodeDocumentInvalid, http.StatusBadRequest},
		{CodeBotCheckFailed, http.StatusBadRequest},
		{CodeDocumentAlreadyRegistered, http.StatusConflict},
		{CodeSessionStateInvalid, http.StatusConflict},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{Code("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToHTTPStatus(tt.code), string(tt.code))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "session store unreachable")
	assert.ErrorIs(t, err, cause)
}
