package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "super-secret"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("test-secret", Claims{Email: "ops@example.com", Role: RoleOperator}, time.Now(), time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", parsed.Email)
	assert.Equal(t, RoleOperator, parsed.Role)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	token, err := GenerateToken("s", Claims{Email: "ops@example.com"}, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("s", token)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	svc := NewService(" Ops@Example.com ", hash, "secret", time.Hour)
	require.True(t, svc.Enabled())

	token, err := svc.Login("ops@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)

	operator, err := svc.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, OperatorContext{Email: "ops@example.com", Role: RoleOperator}, operator)

	_, err = svc.Login("ops@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("someone@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabled(t *testing.T) {
	svc := NewService("", "", "secret", 0)
	assert.False(t, svc.Enabled())

	_, err := svc.Login("a@b.c", "pw")
	assert.ErrorIs(t, err, ErrLoginDisabled)
}
