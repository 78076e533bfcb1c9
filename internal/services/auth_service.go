package services

import (
	"strings"
	"time"

	"stockwatch_backend/internal/auth"
	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/email"
	"stockwatch_backend/internal/logger"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// AuthService - Session Manager: выпуск, проверка, ротация и отзыв
// учетных данных сессии
type AuthService interface {
	Register(db *gorm.DB, req *dto.RegisterRequest) error
	Login(db *gorm.DB, req *dto.LoginRequest, meta dto.ClientMeta) (*dto.AuthResponse, error)
	Refresh(db *gorm.DB, rawRefreshToken string, meta dto.ClientMeta) (*dto.AuthResponse, error)
	Logout(db *gorm.DB, rawRefreshToken string) error
	RevokeAll(db *gorm.DB, userID string) error
	VerifyEmail(db *gorm.DB, rawToken string) error
	RequestPasswordReset(db *gorm.DB, emailAddr string) error
	ResetPassword(db *gorm.DB, rawToken, newPassword string) error
	ChangePassword(db *gorm.DB, userID, currentPassword, newPassword string) error
}

type authServiceImpl struct {
	userRepo      repositories.UserRepository
	credRepo      repositories.CredentialRepository
	tierService   TierService
	emailProvider email.Provider
	cfg           *config.Config
}

// NewAuthService создает новый AuthService
func NewAuthService(
	userRepo repositories.UserRepository,
	credRepo repositories.CredentialRepository,
	tierService TierService,
	emailProvider email.Provider,
	cfg *config.Config,
) AuthService {
	return &authServiceImpl{
		userRepo:      userRepo,
		credRepo:      credRepo,
		tierService:   tierService,
		emailProvider: emailProvider,
		cfg:           cfg,
	}
}

// Register - регистрация нового пользователя
func (s *authServiceImpl) Register(db *gorm.DB, req *dto.RegisterRequest) error {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return apperrors.ErrWeakPassword
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hashedPassword,
		Tier:         models.TierFree,
		IsActive:     true,
		IsVerified:   false,
	}

	if err := s.userRepo.Create(db, user); err != nil {
		if apperrors.Is(err, repositories.ErrUserAlreadyExists) {
			return apperrors.ErrEmailAlreadyExists
		}
		return apperrors.InternalError(err)
	}

	rawToken, err := s.issueOneTimeToken(db, user.ID, models.TokenPurposeEmailVerification)
	if err != nil {
		return apperrors.InternalError(err)
	}

	s.sendVerificationEmail(user.Email, rawToken)

	return nil
}

// Login - аутентификация пользователя.
// Неизвестный email и неверный пароль снаружи неразличимы: один и тот же
// код ошибки, и bcrypt-сравнение выполняется в обоих случаях, чтобы
// латентность не выдавала существование аккаунта.
func (s *authServiceImpl) Login(db *gorm.DB, req *dto.LoginRequest, meta dto.ClientMeta) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(db, normalizeEmail(req.Email))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			auth.CheckDummyHash(req.Password)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, apperrors.ErrUserDeactivated
	}
	if !user.IsVerified {
		return nil, apperrors.ErrUserNotVerified
	}

	if err := s.userRepo.UpdateLastLogin(db, user.ID); err != nil {
		return nil, apperrors.InternalError(err)
	}

	pair, err := s.issueSessionPair(db, user, meta)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.AuthResponse{
		SessionPair: *pair,
		User:        buildUserDTO(user),
	}, nil
}

// Refresh - обновление сессии по refresh credential с обязательной ротацией.
// Предъявление уже отозванного credential трактуется как компрометация:
// отзываются ВСЕ живые refresh credentials пользователя.
func (s *authServiceImpl) Refresh(db *gorm.DB, rawRefreshToken string, meta dto.ClientMeta) (*dto.AuthResponse, error) {
	cred, err := s.credRepo.FindRefreshByHash(db, auth.HashToken(rawRefreshToken))
	if err != nil {
		if apperrors.Is(err, repositories.ErrCredentialNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}

	now := time.Now()

	if cred.Revoked {
		// Replay либо гонка с прошедшей ротацией - в обоих случаях
		// сессии пользователя принудительно завершаются
		if err := s.credRepo.RevokeAllRefreshByUser(db, cred.UserID); err != nil {
			return nil, apperrors.InternalError(err)
		}
		logger.Warn("refresh credential reuse detected, all sessions revoked",
			"user_id", cred.UserID, "credential_id", cred.ID, "ip", meta.IP)
		return nil, apperrors.ErrTokenReused
	}

	if !cred.Valid(now) {
		return nil, apperrors.ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(db, cred.UserID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserDeactivated
	}

	// Ротация атомарна: отзыв старого и выпуск нового - одна транзакция,
	// окна с двумя одновременно валидными credentials не существует
	var pair *dto.SessionPair
	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := s.credRepo.RevokeRefresh(tx, cred.ID); err != nil {
			return err
		}

		p, err := s.issueSessionPair(tx, user, meta)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if txErr != nil {
		if apperrors.Is(txErr, repositories.ErrCredentialNotFound) {
			// Конкурентный Refresh успел отозвать credential первым
			return nil, apperrors.ErrTokenRevoked
		}
		return nil, apperrors.InternalError(txErr)
	}

	return &dto.AuthResponse{
		SessionPair: *pair,
		User:        buildUserDTO(user),
	}, nil
}

// Logout - выход: отзыв предъявленного refresh credential
func (s *authServiceImpl) Logout(db *gorm.DB, rawRefreshToken string) error {
	cred, err := s.credRepo.FindRefreshByHash(db, auth.HashToken(rawRefreshToken))
	if err != nil {
		if apperrors.Is(err, repositories.ErrCredentialNotFound) {
			return apperrors.ErrInvalidToken
		}
		return apperrors.InternalError(err)
	}

	if err := s.credRepo.RevokeRefresh(db, cred.ID); err != nil {
		if apperrors.Is(err, repositories.ErrCredentialNotFound) {
			return apperrors.ErrTokenRevoked
		}
		return apperrors.InternalError(err)
	}
	return nil
}

// RevokeAll - принудительное завершение всех сессий пользователя
func (s *authServiceImpl) RevokeAll(db *gorm.DB, userID string) error {
	if err := s.credRepo.RevokeAllRefreshByUser(db, userID); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

// VerifyEmail - подтверждение email по одноразовому токену
func (s *authServiceImpl) VerifyEmail(db *gorm.DB, rawToken string) error {
	token, err := s.lookupOneTimeToken(db, models.TokenPurposeEmailVerification, rawToken)
	if err != nil {
		return err
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := s.credRepo.MarkUsed(tx, token.ID); err != nil {
			return err
		}
		return s.userRepo.VerifyUser(tx, token.UserID)
	})
	if txErr != nil {
		if apperrors.Is(txErr, repositories.ErrCredentialNotFound) {
			return apperrors.ErrInvalidToken
		}
		return apperrors.InternalError(txErr)
	}
	return nil
}

// RequestPasswordReset - запрос сброса пароля.
// Существование email не раскрывается: ответ одинаков в обоих случаях.
func (s *authServiceImpl) RequestPasswordReset(db *gorm.DB, emailAddr string) error {
	user, err := s.userRepo.FindByEmail(db, normalizeEmail(emailAddr))
	if err != nil {
		return nil
	}

	rawToken, err := s.issueOneTimeToken(db, user.ID, models.TokenPurposePasswordReset)
	if err != nil {
		return apperrors.InternalError(err)
	}

	s.sendPasswordResetEmail(user.Email, rawToken)

	return nil
}

// ResetPassword - сброс пароля по одноразовому токену.
// Токен гасится, пароль меняется и все refresh credentials отзываются
// одной транзакцией.
func (s *authServiceImpl) ResetPassword(db *gorm.DB, rawToken, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	token, err := s.lookupOneTimeToken(db, models.TokenPurposePasswordReset, rawToken)
	if err != nil {
		return err
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := s.credRepo.MarkUsed(tx, token.ID); err != nil {
			return err
		}
		if err := s.userRepo.UpdatePasswordHash(tx, token.UserID, hashedPassword); err != nil {
			return err
		}
		return s.credRepo.RevokeAllRefreshByUser(tx, token.UserID)
	})
	if txErr != nil {
		if apperrors.Is(txErr, repositories.ErrCredentialNotFound) {
			return apperrors.ErrInvalidToken
		}
		return apperrors.InternalError(txErr)
	}
	return nil
}

// ChangePassword - смена пароля при известном текущем.
// ВСЕ refresh credentials отзываются, включая инициировавшую сессию:
// клиент продолжает работу на живой access assertion и логинится заново.
func (s *authServiceImpl) ChangePassword(db *gorm.DB, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.UpdatePasswordHash(tx, userID, hashedPassword); err != nil {
			return err
		}
		return s.credRepo.RevokeAllRefreshByUser(tx, userID)
	})
	if txErr != nil {
		return apperrors.InternalError(txErr)
	}
	return nil
}

// --- Helper functions ---

// issueSessionPair выпускает новую пару: подписанная access assertion
// со снапшотом тарифа + refresh credential (в БД попадает только хеш)
func (s *authServiceImpl) issueSessionPair(db *gorm.DB, user *models.User, meta dto.ClientMeta) (*dto.SessionPair, error) {
	tierInfo := effectiveTier(user, time.Now())

	accessToken, err := auth.GenerateAccessToken(
		user.ID,
		tierInfo.Tier,
		[]byte(s.cfg.JWT.Secret),
		time.Duration(s.cfg.JWT.TTLMinutes)*time.Minute,
	)
	if err != nil {
		return nil, err
	}

	rawRefresh, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	cred := &models.RefreshCredential{
		UserID:    user.ID,
		TokenHash: auth.HashToken(rawRefresh),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.Session.RefreshTTLDays) * 24 * time.Hour),
		UserAgent: meta.UserAgent,
		ClientIP:  meta.IP,
	}
	if err := s.credRepo.CreateRefresh(db, cred); err != nil {
		return nil, err
	}

	return &dto.SessionPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
	}, nil
}

// issueOneTimeToken создает одноразовый токен и возвращает сырое значение
func (s *authServiceImpl) issueOneTimeToken(db *gorm.DB, userID string, purpose models.TokenPurpose) (string, error) {
	rawToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	token := &models.OneTimeToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: auth.HashToken(rawToken),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.Session.ResetTTLMinutes) * time.Minute),
	}
	if err := s.credRepo.CreateOneTime(db, token); err != nil {
		return "", err
	}

	return rawToken, nil
}

// lookupOneTimeToken ищет токен и проверяет его пригодность.
// Истекший или использованный токен невалиден навсегда; различаются
// только коды ошибок для вызывающей стороны.
func (s *authServiceImpl) lookupOneTimeToken(db *gorm.DB, purpose models.TokenPurpose, rawToken string) (*models.OneTimeToken, error) {
	token, err := s.credRepo.FindOneTimeByHash(db, purpose, auth.HashToken(rawToken))
	if err != nil {
		if apperrors.Is(err, repositories.ErrCredentialNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.InternalError(err)
	}

	if token.Used {
		return nil, apperrors.ErrInvalidToken
	}
	if !token.Valid(time.Now()) {
		return nil, apperrors.ErrTokenExpired
	}

	return token, nil
}

func (s *authServiceImpl) sendVerificationEmail(to, token string) {
	if s.emailProvider == nil {
		return
	}

	go func() {
		if err := s.emailProvider.SendVerification(to, token); err != nil {
			logger.Error("failed to send verification email", "error", err)
		}
	}()
}

func (s *authServiceImpl) sendPasswordResetEmail(to, token string) {
	if s.emailProvider == nil {
		return
	}

	go func() {
		if err := s.emailProvider.SendPasswordReset(to, token); err != nil {
			logger.Error("failed to send password reset email", "error", err)
		}
	}()
}

func buildUserDTO(user *models.User) dto.UserDTO {
	info := effectiveTier(user, time.Now())
	return dto.UserDTO{
		ID:              user.ID,
		Email:           user.Email,
		Tier:            info.Tier,
		SubscriptionEnd: info.SubscriptionEnd,
		IsVerified:      user.IsVerified,
		CreatedAt:       user.CreatedAt,
	}
}

// normalizeEmail приводит email к канонической форме хранения
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
