package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ts, err := NewTokenService("test-secret", "HS256")
	require.NoError(t, err)

	token, err := ts.GenerateToken("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := ts.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestExpiredTokenRejected(t *testing.T) {
	ts, err := NewTokenService("test-secret", "HS256")
	require.NoError(t, err)

	// Correctly signed but already expired.
	claims := jwt.MapClaims{
		"sub": "user-123",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ts.ValidateToken(expired)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	ts, err := NewTokenService("test-secret", "HS256")
	require.NoError(t, err)

	_, err = ts.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	issuer, err := NewTokenService("secret-a", "HS256")
	require.NoError(t, err)
	verifier, err := NewTokenService("secret-b", "HS256")
	require.NoError(t, err)

	token, err := issuer.GenerateToken("user-123")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestNonHMACAlgorithmRejected(t *testing.T) {
	_, err := NewTokenService("test-secret", "RS256")
	assert.Error(t, err)

	_, err = NewTokenService("test-secret", "bogus")
	assert.Error(t, err)
}
