package auth

import (
	"testing"
	"time"

	"stockwatch_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test_secret_key")

func TestGenerateAndParseAccessToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateAccessToken("user-1", models.TierPaid, testSecret, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.TierPaid, claims.Tier)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := GenerateAccessToken("user-1", models.TierFree, testSecret, 15*time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, []byte("another_secret"))
	assert.Error(t, err)
}

func TestParseAccessToken_Expired(t *testing.T) {
	t.Parallel()

	token, err := GenerateAccessToken("user-1", models.TierFree, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseAccessToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ParseAccessToken("not-a-jwt", testSecret)
	assert.Error(t, err)
}

func TestGenerateOpaqueToken_Unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateOpaqueToken()
	require.NoError(t, err)
	b, err := GenerateOpaqueToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64) // 32 байта в hex
}

func TestHashToken_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HashToken("raw-token"), HashToken("raw-token"))
	assert.NotEqual(t, HashToken("raw-token"), HashToken("raw-token-2"))
}
