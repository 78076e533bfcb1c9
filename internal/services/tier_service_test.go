package services_test

import (
	"testing"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidEvent(id string, eventAt time.Time) *services.TransitionEvent {
	start := eventAt
	end := eventAt.AddDate(0, 1, 0)
	return &services.TransitionEvent{
		ExternalEventID: id,
		Source:          models.EventSourceWebhook,
		TargetTier:      models.TierPaid,
		PeriodStart:     &start,
		PeriodEnd:       &end,
		EventAt:         eventAt,
	}
}

func TestApplyTransition_Applied(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	result, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, services.TransitionApplied, result.Status)

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPaid, info.Tier)
	require.NotNil(t, info.SubscriptionEnd)
}

func TestApplyTransition_DuplicateIsNoOp(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	eventAt := time.Now()
	first, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-dup", eventAt))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, first.Status)

	// Redelivery того же события: принимается, но не применяется повторно
	second, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-dup", eventAt))
	require.NoError(t, err)
	assert.Equal(t, services.TransitionDuplicate, second.Status)

	var count int64
	env.db.Model(&models.TierEvent{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestApplyTransition_RedeliveryAfterNewerEventIsDuplicate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	t0 := time.Now()
	first, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-1", t0))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, first.Status)

	newer, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-2", t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, newer.Status)

	// Redelivery уже примененного evt-1 после evt-2: это Duplicate,
	// а не stale - dedup по external id имеет приоритет над упорядочиванием
	redelivered, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-1", t0))
	require.NoError(t, err)
	assert.Equal(t, services.TransitionDuplicate, redelivered.Status)

	var count int64
	env.db.Model(&models.TierEvent{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestApplyTransition_StaleEventRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	now := time.Now()
	fresh, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-new", now))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, fresh.Status)

	// Событие с более ранним временем пришло позже - отклоняется
	stale, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-old", now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, services.TransitionRejected, stale.Status)
	assert.Equal(t, "stale_event", stale.Reason)

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPaid, info.Tier)
}

func TestApplyTransition_UnknownTierRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	result, err := env.tier.ApplyTransition(env.db, user.ID, &services.TransitionEvent{
		ExternalEventID: "evt-bad-tier",
		Source:          models.EventSourceWebhook,
		TargetTier:      models.Tier("platinum"),
		EventAt:         time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, services.TransitionRejected, result.Status)
	assert.Equal(t, "unknown_tier", result.Reason)
}

func TestCurrentTier_LazyExpiry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	// Подписка, истекшая вчера
	start := time.Now().AddDate(0, -1, 0)
	end := time.Now().AddDate(0, 0, -1)
	result, err := env.tier.ApplyTransition(env.db, user.ID, &services.TransitionEvent{
		ExternalEventID: "evt-expired",
		Source:          models.EventSourceWebhook,
		TargetTier:      models.TierPaid,
		PeriodStart:     &start,
		PeriodEnd:       &end,
		EventAt:         start,
	})
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, result.Status)

	// Чтение отдает free, не трогая хранимое поле
	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, info.Tier)

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, models.TierPaid, stored.Tier)
}

func TestUpgrade_RequiresPaymentMethod(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})
	helpers.CreatePlan(t, env.db, &models.SubscriptionPlan{
		Code:     "paid-monthly",
		Name:     "Pro Monthly",
		Tier:     models.TierPaid,
		Interval: models.PlanIntervalMonthly,
		Price:    9.99,
	})

	result, err := env.tier.Upgrade(env.db, user.ID, "paid-monthly")
	require.NoError(t, err)
	assert.Equal(t, services.TransitionRejected, result.Status)
	assert.Equal(t, "payment_required", result.Reason)

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, info.Tier)
}

func TestUpgradeAndDowngrade(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PaymentMethodAttached: true})
	helpers.CreatePlan(t, env.db, &models.SubscriptionPlan{
		Code:     "paid-monthly",
		Name:     "Pro Monthly",
		Tier:     models.TierPaid,
		Interval: models.PlanIntervalMonthly,
		Price:    9.99,
	})

	up, err := env.tier.Upgrade(env.db, user.ID, "paid-monthly")
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, up.Status)

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPaid, info.Tier)
	require.NotNil(t, info.SubscriptionEnd)

	down, err := env.tier.Downgrade(env.db, user.ID)
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, down.Status)

	info, err = env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, info.Tier)
	assert.Nil(t, info.SubscriptionEnd)
}

func TestUpgrade_UnknownPlan(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PaymentMethodAttached: true})

	_, err := env.tier.Upgrade(env.db, user.ID, "no-such-plan")
	require.Error(t, err)
}

func TestMarkAtRisk_DoesNotDowngrade(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	result, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-risk", time.Now()))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, result.Status)

	require.NoError(t, env.tier.MarkAtRisk(env.db, user.ID))

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPaid, info.Tier)
	assert.True(t, info.AtRisk)
}

func TestApplyTransition_ClearsAtRiskFlag(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	now := time.Now()
	_, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-a", now))
	require.NoError(t, err)
	require.NoError(t, env.tier.MarkAtRisk(env.db, user.ID))

	// Успешное продление снимает флаг
	result, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-b", now.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, services.TransitionApplied, result.Status)

	info, err := env.tier.CurrentTier(env.db, user.ID)
	require.NoError(t, err)
	assert.False(t, info.AtRisk)
}

func TestHistory_NewestFirst(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	now := time.Now()
	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		result, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent(id, now.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		require.Equal(t, services.TransitionApplied, result.Status)
	}

	events, err := env.tier.History(env.db, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-3", events[0].ExternalEventID)
	assert.Equal(t, "evt-2", events[1].ExternalEventID)
}

func TestListPlans(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	helpers.CreatePlan(t, env.db, &models.SubscriptionPlan{
		Code:     "paid-annual",
		Name:     "Pro Annual",
		Tier:     models.TierPaid,
		Interval: models.PlanIntervalAnnual,
		Price:    99,
	})

	plans, err := env.tier.ListPlans(env.db)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "paid-annual", plans[0].Code)
}
