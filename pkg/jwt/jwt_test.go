package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	service := NewService("test-secret", time.Hour)

	token, err := service.Generate("user-1", []string{"customer"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []string{"customer"}, claims.Roles)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "tripline-booking", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	token, err := issuer.Generate("user-1", []string{"admin"})
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	service := NewService("test-secret", time.Hour)

	_, err := service.Validate("not.a.token")
	assert.Error(t, err)
	assert.False(t, service.IsExpired("not.a.token"))
}

func TestExpiredToken(t *testing.T) {
	service := NewService("test-secret", -time.Minute)

	token, err := service.Generate("user-1", []string{"customer"})
	require.NoError(t, err)

	_, err = service.Validate(token)
	require.Error(t, err)
	assert.True(t, service.IsExpired(token))
}
