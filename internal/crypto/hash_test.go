package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCheck(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		key     []byte
		wantErr bool
	}{
		{
			name: "successful check",
			key:  []byte("0123456789abcdef0123456789abcdef"),
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
			errMsg:  "key cannot be empty",
		},
		{
			name:    "nil key",
			key:     nil,
			wantErr: true,
			errMsg:  "key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := KeyCheck(tt.key)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Empty(t, check)
				return
			}
			require.NoError(t, err)
			// SHA256 в hex всегда 64 символа
			assert.Regexp(t, "^[a-f0-9]{64}$", check)
		})
	}
}

func TestKeyCheck_Deterministic(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	first, err := KeyCheck(key)
	require.NoError(t, err)
	second, err := KeyCheck(key)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := KeyCheck([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestVerifyKeyCheck(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key, err := DeriveKey("correct horse", salt)
	require.NoError(t, err)
	check, err := KeyCheck(key)
	require.NoError(t, err)

	wrong, err := DeriveKey("wrong horse", salt)
	require.NoError(t, err)

	tests := []struct {
		name    string
		key     []byte
		check   string
		wantErr error
		anyErr  bool
	}{
		{name: "matching key", key: key, check: check},
		{name: "wrong passphrase", key: wrong, check: check, wantErr: ErrKeyMismatch},
		{name: "empty check", key: key, check: "", anyErr: true},
		{name: "empty key", key: nil, check: check, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyKeyCheck(tt.key, tt.check)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
