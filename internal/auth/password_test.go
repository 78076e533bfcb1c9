package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("super_password123")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("super_password123", hash))
	assert.False(t, CheckPasswordHash("wrong_password", hash))
}

func TestCheckDummyHash_AlwaysFalse(t *testing.T) {
	t.Parallel()

	assert.False(t, CheckDummyHash("anything"))
	assert.False(t, CheckDummyHash(""))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePassword("12345678"))
	assert.Error(t, ValidatePassword("short"))
}
