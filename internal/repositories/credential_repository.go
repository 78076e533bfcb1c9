package repositories

import (
	"errors"
	"time"

	"stockwatch_backend/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrCredentialNotFound возвращается, когда credential не найден по хешу.
	// Вызывающая сторона не различает "нет записи" и "мусорный хеш".
	ErrCredentialNotFound = errors.New("credential not found")
)

// CredentialRepository - хранилище credential-записей: refresh credentials
// и одноразовые токены. Сырые секреты сюда не попадают, только хеши.
type CredentialRepository interface {
	// Refresh credentials
	CreateRefresh(db *gorm.DB, cred *models.RefreshCredential) error
	FindRefreshByHash(db *gorm.DB, tokenHash string) (*models.RefreshCredential, error)
	RevokeRefresh(db *gorm.DB, id string) error
	RevokeAllRefreshByUser(db *gorm.DB, userID string) error
	CountValidRefreshByUser(db *gorm.DB, userID string) (int64, error)

	// Одноразовые токены
	CreateOneTime(db *gorm.DB, token *models.OneTimeToken) error
	FindOneTimeByHash(db *gorm.DB, purpose models.TokenPurpose, tokenHash string) (*models.OneTimeToken, error)
	MarkUsed(db *gorm.DB, id string) error

	// PurgeExpired удаляет истекшие записи обоих видов. Best-effort
	// housekeeping: срок действия всегда проверяется при чтении,
	// purge только ограничивает рост таблиц.
	PurgeExpired(db *gorm.DB) (int64, error)
}

type credentialRepository struct{}

// NewCredentialRepository создает новый экземпляр CredentialRepository
func NewCredentialRepository() CredentialRepository {
	return &credentialRepository{}
}

func (r *credentialRepository) CreateRefresh(db *gorm.DB, cred *models.RefreshCredential) error {
	return db.Create(cred).Error
}

func (r *credentialRepository) FindRefreshByHash(db *gorm.DB, tokenHash string) (*models.RefreshCredential, error) {
	var cred models.RefreshCredential
	if err := db.Where("token_hash = ?", tokenHash).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// RevokeRefresh помечает credential отозванным. Переход one-way:
// сброса флага нет нигде в кодовой базе.
func (r *credentialRepository) RevokeRefresh(db *gorm.DB, id string) error {
	now := time.Now()
	result := db.Model(&models.RefreshCredential{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func (r *credentialRepository) RevokeAllRefreshByUser(db *gorm.DB, userID string) error {
	now := time.Now()
	return db.Model(&models.RefreshCredential{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": now,
		}).Error
}

func (r *credentialRepository) CountValidRefreshByUser(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.RefreshCredential{}).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, time.Now()).
		Count(&count).Error
	return count, err
}

func (r *credentialRepository) CreateOneTime(db *gorm.DB, token *models.OneTimeToken) error {
	return db.Create(token).Error
}

func (r *credentialRepository) FindOneTimeByHash(db *gorm.DB, purpose models.TokenPurpose, tokenHash string) (*models.OneTimeToken, error) {
	var token models.OneTimeToken
	if err := db.Where("purpose = ? AND token_hash = ?", purpose, tokenHash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &token, nil
}

// MarkUsed - монотонный переход used=false -> true
func (r *credentialRepository) MarkUsed(db *gorm.DB, id string) error {
	now := time.Now()
	result := db.Model(&models.OneTimeToken{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func (r *credentialRepository) PurgeExpired(db *gorm.DB) (int64, error) {
	now := time.Now()

	refresh := db.Where("expires_at < ?", now).Delete(&models.RefreshCredential{})
	if refresh.Error != nil {
		return 0, refresh.Error
	}

	oneTime := db.Where("expires_at < ?", now).Delete(&models.OneTimeToken{})
	if oneTime.Error != nil {
		return refresh.RowsAffected, oneTime.Error
	}

	return refresh.RowsAffected + oneTime.RowsAffected, nil
}
