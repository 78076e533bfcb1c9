package services

import (
	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// Виды ресурсов, известные Quota Gate
const (
	ResourceWatchlist = "watchlist"
)

// QuotaUnlimited - сентинел "без ограничения"
const QuotaUnlimited = -1

// QuotaService - Quota Gate: отвечает "разрешено ли действие X при текущем
// тарифе". Тариф перечитывается из Tier Ledger на каждый вызов - снапшоту
// из access assertion здесь не доверяют. Счетчик ресурса поставляет
// вызывающая сторона: коллекцией Gate не владеет.
//
// Это check-then-act без блокировки: две конкурентные вставки могут обе
// пройти проверку и кратковременно превысить лимит на (гонщики - 1).
// Лимит watchlist - advisory, жесткой гарантией он не является.
type QuotaService interface {
	CheckAndReserve(db *gorm.DB, userID, resourceKind string, currentCount int64) error
	LimitFor(tier models.Tier, resourceKind string) int
}

type quotaServiceImpl struct {
	tierService TierService
	cfg         *config.Config
}

// NewQuotaService создает новый QuotaService
func NewQuotaService(tierService TierService, cfg *config.Config) QuotaService {
	return &quotaServiceImpl{
		tierService: tierService,
		cfg:         cfg,
	}
}

func (s *quotaServiceImpl) CheckAndReserve(db *gorm.DB, userID, resourceKind string, currentCount int64) error {
	info, err := s.tierService.CurrentTier(db, userID)
	if err != nil {
		return err
	}

	limit := s.LimitFor(info.Tier, resourceKind)
	if limit == QuotaUnlimited {
		return nil
	}

	if currentCount >= int64(limit) {
		return apperrors.ErrQuotaExceeded(limit)
	}
	return nil
}

func (s *quotaServiceImpl) LimitFor(tier models.Tier, resourceKind string) int {
	switch resourceKind {
	case ResourceWatchlist:
		switch tier {
		case models.TierPaid:
			return s.cfg.Quota.WatchlistPaid
		case models.TierEnterprise:
			return s.cfg.Quota.WatchlistEnterprise
		default:
			return s.cfg.Quota.WatchlistFree
		}
	default:
		// Неизвестный ресурс закрыт: лимит 0
		return 0
	}
}
