package repositories

import (
	"errors"

	"stockwatch_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrWatchlistEntryNotFound = errors.New("watchlist entry not found")
	ErrSymbolAlreadyWatched   = errors.New("symbol already in watchlist")
)

// WatchlistRepository - коллекция-ресурс, размер которой сверяет Quota Gate.
// Сам Gate сюда не пишет: он только потребляет CountByUser.
type WatchlistRepository interface {
	Create(db *gorm.DB, entry *models.WatchlistEntry) error
	Update(db *gorm.DB, entry *models.WatchlistEntry) error
	FindByUserAndSymbol(db *gorm.DB, userID, symbol string) (*models.WatchlistEntry, error)
	ListByUser(db *gorm.DB, userID string) ([]models.WatchlistEntry, error)
	CountByUser(db *gorm.DB, userID string) (int64, error)
	DeleteByUserAndSymbol(db *gorm.DB, userID, symbol string) error
}

type watchlistRepository struct{}

// NewWatchlistRepository создает новый экземпляр WatchlistRepository
func NewWatchlistRepository() WatchlistRepository {
	return &watchlistRepository{}
}

func (r *watchlistRepository) Create(db *gorm.DB, entry *models.WatchlistEntry) error {
	if err := db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSymbolAlreadyWatched
		}
		return err
	}
	return nil
}

func (r *watchlistRepository) Update(db *gorm.DB, entry *models.WatchlistEntry) error {
	result := db.Save(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWatchlistEntryNotFound
	}
	return nil
}

func (r *watchlistRepository) FindByUserAndSymbol(db *gorm.DB, userID, symbol string) (*models.WatchlistEntry, error) {
	var entry models.WatchlistEntry
	if err := db.Where("user_id = ? AND symbol = ?", userID, symbol).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWatchlistEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *watchlistRepository) ListByUser(db *gorm.DB, userID string) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := db.Where("user_id = ?", userID).Order("added_at ASC").Find(&entries).Error
	return entries, err
}

func (r *watchlistRepository) CountByUser(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.WatchlistEntry{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *watchlistRepository) DeleteByUserAndSymbol(db *gorm.DB, userID, symbol string) error {
	result := db.Where("user_id = ? AND symbol = ?", userID, symbol).Delete(&models.WatchlistEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWatchlistEntryNotFound
	}
	return nil
}
