package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	assert.True(t, CheckPasswordHash("pw123", hash))
	assert.False(t, CheckPasswordHash("pw124", hash))
	assert.False(t, CheckPasswordHash("", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("pw123")
	require.NoError(t, err)
	h2, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestMalformedHashRejected(t *testing.T) {
	assert.False(t, CheckPasswordHash("pw123", ""))
	assert.False(t, CheckPasswordHash("pw123", "$bcrypt$whatever"))
	assert.False(t, CheckPasswordHash("pw123", "$argon2id$v=19$m=65536,t=1,p=4$bad salt$bad key"))
}
