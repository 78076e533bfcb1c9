package services_test

import (
	"testing"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/pkg/apperrors"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitFor(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	assert.Equal(t, 3, env.quota.LimitFor(models.TierFree, services.ResourceWatchlist))
	assert.Equal(t, services.QuotaUnlimited, env.quota.LimitFor(models.TierPaid, services.ResourceWatchlist))
	assert.Equal(t, services.QuotaUnlimited, env.quota.LimitFor(models.TierEnterprise, services.ResourceWatchlist))

	// Неизвестный ресурс закрыт по умолчанию
	assert.Equal(t, 0, env.quota.LimitFor(models.TierPaid, "alerts"))
}

func TestCheckAndReserve_FreeTierLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	// Ниже лимита - разрешено
	require.NoError(t, env.quota.CheckAndReserve(env.db, user.ID, services.ResourceWatchlist, 2))

	// На лимите - отказ с лимитом в деталях
	err := env.quota.CheckAndReserve(env.db, user.ID, services.ResourceWatchlist, 3)
	requireAppErrorCode(t, err, apperrors.CodeLimitExceeded)
}

func TestCheckAndReserve_PaidUnlimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	_, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-q", time.Now()))
	require.NoError(t, err)

	require.NoError(t, env.quota.CheckAndReserve(env.db, user.ID, services.ResourceWatchlist, 10000))
}

// Истекшая подписка возвращает пользователя к лимитам free
func TestCheckAndReserve_ExpiredSubscriptionUsesFreeLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	start := time.Now().AddDate(0, -2, 0)
	end := time.Now().AddDate(0, 0, -1)
	_, err := env.tier.ApplyTransition(env.db, user.ID, &services.TransitionEvent{
		ExternalEventID: "evt-exp",
		Source:          models.EventSourceWebhook,
		TargetTier:      models.TierPaid,
		PeriodStart:     &start,
		PeriodEnd:       &end,
		EventAt:         start,
	})
	require.NoError(t, err)

	err = env.quota.CheckAndReserve(env.db, user.ID, services.ResourceWatchlist, 5)
	requireAppErrorCode(t, err, apperrors.CodeLimitExceeded)
}
