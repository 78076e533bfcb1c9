package services_test

import (
	"testing"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/pkg/apperrors"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile_ReturnsEffectiveTier(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	// Истекшая подписка: профиль отдает free
	start := time.Now().AddDate(0, -2, 0)
	end := time.Now().AddDate(0, 0, -1)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"tier":               models.TierPaid,
		"subscription_start": start,
		"subscription_end":   end,
	}).Error)

	profile, err := env.user.GetProfile(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, profile.Tier)
	assert.Equal(t, user.Email, profile.Email)
}

func TestGetProfile_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.user.GetProfile(env.db, "00000000-0000-0000-0000-000000000000")
	requireAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestDeactivate_RevokesSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})

	loginUser(t, env, user.Email, "super_password123")
	require.NoError(t, env.user.Deactivate(env.db, user.ID))

	valid, err := env.credRepo.CountValidRefreshByUser(env.db, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, valid)
}
