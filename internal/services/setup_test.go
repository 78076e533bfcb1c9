package services_test

import (
	"testing"

	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/pkg/apperrors"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv - граф сервисов поверх изолированной in-memory БД
type testEnv struct {
	db    *gorm.DB
	cfg   *config.Config
	email *helpers.NoopEmailProvider

	userRepo repositories.UserRepository
	credRepo repositories.CredentialRepository

	tier      services.TierService
	quota     services.QuotaService
	auth      services.AuthService
	user      services.UserService
	billing   services.BillingService
	watchlist services.WatchlistService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := helpers.NewTestDB(t)
	cfg := helpers.NewTestConfig()
	emailProvider := &helpers.NoopEmailProvider{}

	userRepo := repositories.NewUserRepository()
	credRepo := repositories.NewCredentialRepository()
	subscriptionRepo := repositories.NewSubscriptionRepository()
	watchlistRepo := repositories.NewWatchlistRepository()

	tier := services.NewTierService(userRepo, subscriptionRepo)
	quota := services.NewQuotaService(tier, cfg)

	return &testEnv{
		db:        db,
		cfg:       cfg,
		email:     emailProvider,
		userRepo:  userRepo,
		credRepo:  credRepo,
		tier:      tier,
		quota:     quota,
		auth:      services.NewAuthService(userRepo, credRepo, tier, emailProvider, cfg),
		user:      services.NewUserService(userRepo, credRepo),
		billing:   services.NewBillingService(userRepo, tier, cfg),
		watchlist: services.NewWatchlistService(watchlistRepo, quota),
	}
}

// requireAppErrorCode проверяет, что ошибка несет ожидаемый код
func requireAppErrorCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr), "ожидался *apperrors.AppError, получено: %v", err)
	require.Equal(t, code, appErr.Code, "неожиданный код ошибки: %v", appErr)
}
