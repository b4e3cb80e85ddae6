package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "kyc-gateway/pkg/errors"
)

func TestParseRequestID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		want := NewRequestID()
		got, err := ParseRequestID(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidInput))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseRequestID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidInput))
	})

	t.Run("nil uuid", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidInput))
	})
}

func TestParseUserID(t *testing.T) {
	want := NewUserID()
	got, err := ParseUserID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseUserID("")
	require.Error(t, err)
}

func TestIsNil(t *testing.T) {
	assert.True(t, UserID{}.IsNil())
	assert.True(t, RequestID{}.IsNil())
	assert.False(t, NewRequestID().IsNil())
	assert.False(t, NewDocumentID().IsNil())
}

func TestIDTypesDoNotCollide(t *testing.T) {
	raw := uuid.New()
	userID := UserID(raw)
	requestID := RequestID(raw)
	assert.Equal(t, userID.String(), requestID.String(), "same underlying uuid renders the same")
}
