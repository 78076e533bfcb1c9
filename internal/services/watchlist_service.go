package services

import (
	"strings"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// WatchlistService - операции над списком отслеживаемых тикеров
type WatchlistService interface {
	Add(db *gorm.DB, userID string, req *dto.AddWatchlistRequest) (*dto.WatchlistEntryDTO, error)
	Update(db *gorm.DB, userID, symbol string, req *dto.UpdateWatchlistRequest) (*dto.WatchlistEntryDTO, error)
	Remove(db *gorm.DB, userID, symbol string) error
	List(db *gorm.DB, userID string) ([]dto.WatchlistEntryDTO, error)
}

type watchlistServiceImpl struct {
	watchlistRepo repositories.WatchlistRepository
	quotaService  QuotaService
}

// NewWatchlistService создает новый WatchlistService
func NewWatchlistService(watchlistRepo repositories.WatchlistRepository, quotaService QuotaService) WatchlistService {
	return &watchlistServiceImpl{
		watchlistRepo: watchlistRepo,
		quotaService:  quotaService,
	}
}

// Add добавляет тикер с проверкой квоты тарифа.
// Проверка advisory (check-then-act): параллельные добавления могут
// на мгновение перешагнуть лимит, следующая попытка его восстановит.
func (s *watchlistServiceImpl) Add(db *gorm.DB, userID string, req *dto.AddWatchlistRequest) (*dto.WatchlistEntryDTO, error) {
	symbol := normalizeSymbol(req.Symbol)

	count, err := s.watchlistRepo.CountByUser(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := s.quotaService.CheckAndReserve(db, userID, ResourceWatchlist, count); err != nil {
		return nil, err
	}

	entry := &models.WatchlistEntry{
		UserID:     userID,
		Symbol:     symbol,
		AlertAbove: req.AlertAbove,
		AlertBelow: req.AlertBelow,
		Notes:      req.Notes,
		AddedAt:    time.Now(),
	}

	if err := s.watchlistRepo.Create(db, entry); err != nil {
		if apperrors.Is(err, repositories.ErrSymbolAlreadyWatched) {
			return nil, apperrors.ErrSymbolAlreadyWatched
		}
		return nil, apperrors.InternalError(err)
	}

	result := buildWatchlistEntryDTO(entry)
	return &result, nil
}

func (s *watchlistServiceImpl) Update(db *gorm.DB, userID, symbol string, req *dto.UpdateWatchlistRequest) (*dto.WatchlistEntryDTO, error) {
	entry, err := s.watchlistRepo.FindByUserAndSymbol(db, userID, normalizeSymbol(symbol))
	if err != nil {
		if apperrors.Is(err, repositories.ErrWatchlistEntryNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	if req.AlertAbove != nil {
		entry.AlertAbove = req.AlertAbove
	}
	if req.AlertBelow != nil {
		entry.AlertBelow = req.AlertBelow
	}
	if req.Notes != nil {
		entry.Notes = *req.Notes
	}

	if err := s.watchlistRepo.Update(db, entry); err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := buildWatchlistEntryDTO(entry)
	return &result, nil
}

func (s *watchlistServiceImpl) Remove(db *gorm.DB, userID, symbol string) error {
	if err := s.watchlistRepo.DeleteByUserAndSymbol(db, userID, normalizeSymbol(symbol)); err != nil {
		if apperrors.Is(err, repositories.ErrWatchlistEntryNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *watchlistServiceImpl) List(db *gorm.DB, userID string) ([]dto.WatchlistEntryDTO, error) {
	entries, err := s.watchlistRepo.ListByUser(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]dto.WatchlistEntryDTO, 0, len(entries))
	for i := range entries {
		result = append(result, buildWatchlistEntryDTO(&entries[i]))
	}
	return result, nil
}

func buildWatchlistEntryDTO(entry *models.WatchlistEntry) dto.WatchlistEntryDTO {
	return dto.WatchlistEntryDTO{
		Symbol:     entry.Symbol,
		AlertAbove: entry.AlertAbove,
		AlertBelow: entry.AlertBelow,
		Notes:      entry.Notes,
		AddedAt:    entry.AddedAt,
	}
}

// normalizeSymbol - тикеры хранятся в верхнем регистре
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
