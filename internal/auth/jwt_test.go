package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", "u1", "t1", "maple", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "maple", claims.TenantSlug)
}

func TestValidateTokenRejects(t *testing.T) {
	good, err := GenerateToken("secret", "u1", "t1", "maple", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("secret", "u1", "t1", "maple", -time.Minute)
	require.NoError(t, err)
	noTenant, err := GenerateToken("secret", "u1", "", "maple", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"garbage", "secret", "not-a-token"},
		{"missing tenant", "secret", noTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}

	_, err = ValidateToken("secret", noTenant)
	assert.ErrorIs(t, err, ErrMissingClaims)
}
