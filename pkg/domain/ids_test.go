package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attesto/pkg/domain-errors"
)

// TestParseUUID_Invariants validates that IDs crossing a trust boundary are
// valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseWalletID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseBackupID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		parsed, err := ParseUserID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, raw.String(), parsed.String())
		assert.False(t, parsed.IsNil())
	})
}

func TestNewIDsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewWalletID(), NewWalletID())
	assert.False(t, NewBackupID().IsNil())
}

func TestIDsMarshalAsUUIDStrings(t *testing.T) {
	walletID := NewWalletID()
	raw, err := json.Marshal(struct {
		WalletID WalletID `json:"walletId"`
	}{walletID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"walletId":"`+walletID.String()+`"}`, string(raw))

	var decoded struct {
		WalletID WalletID `json:"walletId"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, walletID, decoded.WalletID)
}
