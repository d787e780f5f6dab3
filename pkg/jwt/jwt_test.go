package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTUtil_RoundTrip(t *testing.T) {
	util := NewJWTUtil("secret", time.Hour)

	token, err := util.GenerateToken(42, "ops@fleet.test", "ADMIN")
	require.NoError(t, err)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ops@fleet.test", claims.Email)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTUtil_RejectsForeignSecret(t *testing.T) {
	token, err := NewJWTUtil("other", time.Hour).GenerateToken(1, "a@b.c", "ADMIN")
	require.NoError(t, err)

	_, err = NewJWTUtil("secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTUtil_RejectsExpired(t *testing.T) {
	util := NewJWTUtil("secret", time.Nanosecond)
	token, err := util.GenerateToken(1, "a@b.c", "ADMIN")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = util.ValidateToken(token)
	assert.Error(t, err)
}
