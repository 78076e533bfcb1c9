package repositories

import (
	"errors"

	"stockwatch_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrPlanNotFound  = errors.New("subscription plan not found")
	ErrEventNotFound = errors.New("tier event not found")

	// ErrEventAlreadyApplied - событие с таким external id уже применено
	// для этого пользователя. Для вызывающей стороны это не сбой,
	// а сигнал идемпотентного no-op.
	ErrEventAlreadyApplied = errors.New("tier event already applied")
)

// SubscriptionRepository - каталог планов и insert-only журнал
// примененных переходов тарифа
type SubscriptionRepository interface {
	FindPlanByCode(db *gorm.DB, code string) (*models.SubscriptionPlan, error)
	GetActivePlans(db *gorm.DB) ([]models.SubscriptionPlan, error)
	CreatePlan(db *gorm.DB, plan *models.SubscriptionPlan) error

	// CreateTierEvent вставляет dedup-маркер применяемого события.
	// Уникальный индекс (user_id, external_event_id) - жесткая граница
	// против double-apply при конкурентной redelivery.
	CreateTierEvent(db *gorm.DB, event *models.TierEvent) error
	FindTierEvent(db *gorm.DB, userID, externalEventID string) (*models.TierEvent, error)
	ListTierEventsByUser(db *gorm.DB, userID string, limit int) ([]models.TierEvent, error)
}

type subscriptionRepository struct{}

// NewSubscriptionRepository создает новый экземпляр SubscriptionRepository
func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) FindPlanByCode(db *gorm.DB, code string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := db.Where("code = ? AND is_active = ?", code, true).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *subscriptionRepository) GetActivePlans(db *gorm.DB) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := db.Where("is_active = ?", true).Order("price ASC").Find(&plans).Error
	return plans, err
}

func (r *subscriptionRepository) CreatePlan(db *gorm.DB, plan *models.SubscriptionPlan) error {
	return db.Create(plan).Error
}

func (r *subscriptionRepository) CreateTierEvent(db *gorm.DB, event *models.TierEvent) error {
	if err := db.Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEventAlreadyApplied
		}
		return err
	}
	return nil
}

func (r *subscriptionRepository) FindTierEvent(db *gorm.DB, userID, externalEventID string) (*models.TierEvent, error) {
	var event models.TierEvent
	if err := db.Where("user_id = ? AND external_event_id = ?", userID, externalEventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *subscriptionRepository) ListTierEventsByUser(db *gorm.DB, userID string, limit int) ([]models.TierEvent, error) {
	var events []models.TierEvent
	err := db.Where("user_id = ?", userID).
		Order("event_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
