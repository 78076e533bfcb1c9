package services_test

import (
	"testing"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistAddAndList(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	above := 200.0
	entry, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{
		Symbol:     "aapl",
		AlertAbove: &above,
		Notes:      "earnings play",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", entry.Symbol) // нормализуется в верхний регистр
	require.NotNil(t, entry.AlertAbove)

	entries, err := env.watchlist.List(env.db, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL", entries[0].Symbol)
}

func TestWatchlistAdd_DuplicateSymbol(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	_, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: "MSFT"})
	require.NoError(t, err)

	// Регистр не спасает от дубликата
	_, err = env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: "msft"})
	requireAppErrorCode(t, err, apperrors.CodeAlreadyExists)
}

func TestWatchlistAdd_FreeTierQuota(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		_, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: symbol})
		require.NoError(t, err)
	}

	// Четвертый тикер на free не проходит
	_, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: "TSLA"})
	requireAppErrorCode(t, err, apperrors.CodeLimitExceeded)

	// После удаления место освобождается
	require.NoError(t, env.watchlist.Remove(env.db, user.ID, "GOOG"))
	_, err = env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: "TSLA"})
	require.NoError(t, err)
}

func TestWatchlistAdd_PaidTierUnlimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	_, err := env.tier.ApplyTransition(env.db, user.ID, paidEvent("evt-w", time.Now()))
	require.NoError(t, err)

	symbols := []string{"AAPL", "MSFT", "GOOG", "TSLA", "NVDA", "AMZN"}
	for _, symbol := range symbols {
		_, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: symbol})
		require.NoError(t, err)
	}

	entries, err := env.watchlist.List(env.db, user.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(symbols))
}

func TestWatchlistUpdate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	_, err := env.watchlist.Add(env.db, user.ID, &dto.AddWatchlistRequest{Symbol: "AAPL"})
	require.NoError(t, err)

	below := 150.0
	notes := "buy the dip"
	updated, err := env.watchlist.Update(env.db, user.ID, "AAPL", &dto.UpdateWatchlistRequest{
		AlertBelow: &below,
		Notes:      &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AlertBelow)
	assert.Equal(t, below, *updated.AlertBelow)
	assert.Equal(t, notes, updated.Notes)
}

func TestWatchlistRemove_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	err := env.watchlist.Remove(env.db, user.ID, "GHOST")
	requireAppErrorCode(t, err, apperrors.CodeNotFound)
}

// Watchlist разных пользователей независимы
func TestWatchlist_PerUserIsolation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	alice := helpers.CreateUser(t, env.db, &models.User{})
	bob := helpers.CreateUser(t, env.db, &models.User{})

	_, err := env.watchlist.Add(env.db, alice.ID, &dto.AddWatchlistRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	_, err = env.watchlist.Add(env.db, bob.ID, &dto.AddWatchlistRequest{Symbol: "AAPL"})
	require.NoError(t, err)

	entries, err := env.watchlist.List(env.db, bob.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
