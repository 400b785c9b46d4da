package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ngPwd")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ngPwd", hash)

	assert.True(t, VerifyPassword("Str0ngPwd", hash))
	assert.False(t, VerifyPassword("str0ngpwd", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("Str0ngPwd")
	require.NoError(t, err)
	second, err := HashPassword("Str0ngPwd")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("Str0ngPwd", "not-a-bcrypt-hash"))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "strong", password: "Str0ngPwd"},
		{name: "too short", password: "Sh0rt", wantErr: ErrPasswordTooShort},
		{name: "no digit", password: "NoDigitsHere", wantErr: ErrPasswordNoDigit},
		{name: "no upper", password: "n0upperhere", wantErr: ErrPasswordNoUpper},
		{name: "no lower", password: "N0LOWERHERE", wantErr: ErrPasswordNoLower},
		{name: "too long", password: "Aa1" + strings.Repeat("x", 70), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrWeakPassword)
		})
	}
}
