package services_test

import (
	"testing"
	"time"

	"stockwatch_backend/internal/auth"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"
	"stockwatch_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMeta = dto.ClientMeta{UserAgent: "go-test", IP: "127.0.0.1"}

func loginUser(t *testing.T, env *testEnv, email, password string) *dto.AuthResponse {
	t.Helper()
	resp, err := env.auth.Login(env.db, &dto.LoginRequest{Email: email, Password: password}, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	err := env.auth.Register(env.db, &dto.RegisterRequest{
		Email:    "New.User@Test.com",
		Password: "super_password123",
	})
	require.NoError(t, err)

	// Логин до верификации email запрещен
	_, err = env.auth.Login(env.db, &dto.LoginRequest{
		Email:    "new.user@test.com",
		Password: "super_password123",
	}, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeForbidden)

	// Верифицируем напрямую и логинимся
	var user models.User
	require.NoError(t, env.db.First(&user, "email = ?", "new.user@test.com").Error)
	require.NoError(t, env.userRepo.VerifyUser(env.db, user.ID))

	resp := loginUser(t, env, "new.user@test.com", "super_password123")
	assert.Equal(t, models.TierFree, resp.User.Tier)

	// Access assertion несет идентичность и снапшот тарифа
	claims, err := auth.ParseAccessToken(resp.AccessToken, []byte(env.cfg.JWT.Secret))
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.TierFree, claims.Tier)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	helpers.CreateUser(t, env.db, &models.User{Email: "taken@test.com"})

	err := env.auth.Register(env.db, &dto.RegisterRequest{
		Email:    "taken@test.com",
		Password: "super_password123",
	})
	requireAppErrorCode(t, err, apperrors.CodeAlreadyExists)
}

// Неизвестный email и неверный пароль обязаны возвращать одну и ту же ошибку
func TestLogin_UniformFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	helpers.CreateUser(t, env.db, &models.User{Email: "known@test.com", PasswordHash: "correct_password"})

	_, errUnknown := env.auth.Login(env.db, &dto.LoginRequest{
		Email:    "unknown@test.com",
		Password: "whatever123",
	}, testMeta)
	_, errWrongPass := env.auth.Login(env.db, &dto.LoginRequest{
		Email:    "known@test.com",
		Password: "wrong_password",
	}, testMeta)

	requireAppErrorCode(t, errUnknown, apperrors.CodeInvalidCredentials)
	requireAppErrorCode(t, errWrongPass, apperrors.CodeInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
}

func TestRefresh_RotatesCredential(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})

	session := loginUser(t, env, user.Email, "super_password123")

	refreshed, err := env.auth.Refresh(env.db, session.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)

	// Ровно один живой credential: старый отозван в той же транзакции
	valid, err := env.credRepo.CountValidRefreshByUser(env.db, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, valid)

	// Новый credential работает
	_, err = env.auth.Refresh(env.db, refreshed.RefreshToken, testMeta)
	require.NoError(t, err)
}

// Сбой хранилища при загрузке пользователя - не повод выкидывать клиента
// на re-login: это внутренняя ошибка, а не невалидный credential
func TestRefresh_StorageErrorIsNotInvalidToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})

	session := loginUser(t, env, user.Email, "super_password123")

	require.NoError(t, env.db.Migrator().DropTable(&models.User{}))

	_, err := env.auth.Refresh(env.db, session.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeInternalError)
}

// Вставка, проигравшая гонку регистраций, отображается в AlreadyExists,
// а не во внутреннюю ошибку: уникальный индекс по email - штатная проверка
func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	helpers.CreateUser(t, env.db, &models.User{Email: "raced@test.com"})

	err := env.userRepo.Create(env.db, &models.User{
		Email:        "raced@test.com",
		PasswordHash: "hash",
		Tier:         models.TierFree,
	})
	require.ErrorIs(t, err, repositories.ErrUserAlreadyExists)
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})

	// Две независимые сессии
	sessionA := loginUser(t, env, user.Email, "super_password123")
	sessionB := loginUser(t, env, user.Email, "super_password123")

	// Сессия A ротируется штатно
	rotated, err := env.auth.Refresh(env.db, sessionA.RefreshToken, testMeta)
	require.NoError(t, err)

	// Повторное предъявление уже отозванного credential A - компрометация
	_, err = env.auth.Refresh(env.db, sessionA.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenReused)

	// Отозвано ВСЕ, включая сессию B и свежую ротацию
	valid, err := env.credRepo.CountValidRefreshByUser(env.db, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, valid)

	_, err = env.auth.Refresh(env.db, sessionB.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenReused)
	_, err = env.auth.Refresh(env.db, rotated.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenReused)
}

func TestRefresh_UnknownToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.auth.Refresh(env.db, "never-issued-token", testMeta)
	requireAppErrorCode(t, err, apperrors.CodeUnauthorized)
}

func TestRefresh_ExpiredCredential(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})

	raw, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	require.NoError(t, env.credRepo.CreateRefresh(env.db, &models.RefreshCredential{
		UserID:    user.ID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err = env.auth.Refresh(env.db, raw, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenExpired)
}

func TestLogout_RevokesCredential(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})

	session := loginUser(t, env, user.Email, "super_password123")
	require.NoError(t, env.auth.Logout(env.db, session.RefreshToken))

	// Предъявление после logout трактуется как reuse
	_, err := env.auth.Refresh(env.db, session.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenReused)
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{})
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_verified", false)

	raw, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	require.NoError(t, env.credRepo.CreateOneTime(env.db, &models.OneTimeToken{
		UserID:    user.ID,
		Purpose:   models.TokenPurposeEmailVerification,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, env.auth.VerifyEmail(env.db, raw))

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.ID).Error)
	assert.True(t, stored.IsVerified)

	// Повторное использование токена невалидно
	err = env.auth.VerifyEmail(env.db, raw)
	requireAppErrorCode(t, err, apperrors.CodeUnauthorized)
}

func TestResetPassword_Flow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "old_password123"})

	session := loginUser(t, env, user.Email, "old_password123")

	raw, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	require.NoError(t, env.credRepo.CreateOneTime(env.db, &models.OneTimeToken{
		UserID:    user.ID,
		Purpose:   models.TokenPurposePasswordReset,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, env.auth.ResetPassword(env.db, raw, "new_password456"))

	// Старый пароль не работает, новый работает
	_, err = env.auth.Login(env.db, &dto.LoginRequest{Email: user.Email, Password: "old_password123"}, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeInvalidCredentials)
	loginUser(t, env, user.Email, "new_password456")

	// Все прежние сессии завершены
	_, err = env.auth.Refresh(env.db, session.RefreshToken, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeTokenReused)

	// Токен сброса одноразовый
	err = env.auth.ResetPassword(env.db, raw, "another_password789")
	requireAppErrorCode(t, err, apperrors.CodeUnauthorized)
}

func TestRequestPasswordReset_UnknownEmailSilent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Существование email не раскрывается: ошибки нет
	require.NoError(t, env.auth.RequestPasswordReset(env.db, "ghost@test.com"))
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "old_password123"})

	err := env.auth.ChangePassword(env.db, user.ID, "wrong_current", "new_password456")
	requireAppErrorCode(t, err, apperrors.CodeInvalidCredentials)

	require.NoError(t, env.auth.ChangePassword(env.db, user.ID, "old_password123", "new_password456"))
	loginUser(t, env, user.Email, "new_password456")
}

func TestLogin_DeactivatedUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := helpers.CreateUser(t, env.db, &models.User{PasswordHash: "super_password123"})
	require.NoError(t, env.user.Deactivate(env.db, user.ID))

	_, err := env.auth.Login(env.db, &dto.LoginRequest{Email: user.Email, Password: "super_password123"}, testMeta)
	requireAppErrorCode(t, err, apperrors.CodeForbidden)
}
