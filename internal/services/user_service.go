package services

import (
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// UserService - профиль и жизненный цикл аккаунта
type UserService interface {
	GetProfile(db *gorm.DB, userID string) (*dto.UserDTO, error)
	Deactivate(db *gorm.DB, userID string) error
}

type userServiceImpl struct {
	userRepo repositories.UserRepository
	credRepo repositories.CredentialRepository
}

// NewUserService создает новый UserService
func NewUserService(userRepo repositories.UserRepository, credRepo repositories.CredentialRepository) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		credRepo: credRepo,
	}
}

func (s *userServiceImpl) GetProfile(db *gorm.DB, userID string) (*dto.UserDTO, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	profile := buildUserDTO(user)
	return &profile, nil
}

// Deactivate отключает аккаунт и завершает все его сессии
func (s *userServiceImpl) Deactivate(db *gorm.DB, userID string) error {
	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Deactivate(tx, userID); err != nil {
			return err
		}
		return s.credRepo.RevokeAllRefreshByUser(tx, userID)
	})
	if txErr != nil {
		if apperrors.Is(txErr, repositories.ErrUserNotFound) {
			return apperrors.ErrNotFound(txErr)
		}
		return apperrors.InternalError(txErr)
	}
	return nil
}
