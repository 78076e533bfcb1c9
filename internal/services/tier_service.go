package services

import (
	"errors"
	"fmt"
	"time"

	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/services/dto"
	"stockwatch_backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransitionStatus - исход применения перехода тарифа
type TransitionStatus string

const (
	TransitionApplied   TransitionStatus = "applied"
	TransitionDuplicate TransitionStatus = "duplicate"
	TransitionRejected  TransitionStatus = "rejected"
)

// TransitionResult - результат ApplyTransition. Duplicate - не ошибка:
// redelivery вебхука обязан завершаться как no-op успех.
type TransitionResult struct {
	Status TransitionStatus
	Reason string // заполнен только при Rejected
}

// TransitionEvent - событие перехода тарифа, очищенное от формы провайдера
type TransitionEvent struct {
	ExternalEventID string
	Source          models.EventSource
	TargetTier      models.Tier
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	EventAt         time.Time
	SubscriptionRef string
	Payload         []byte // сырой payload для аудита, может быть nil

	// PaymentConfirmed - событие подтверждает работающий способ оплаты
	// (успешное создание/продление подписки провайдером)
	PaymentConfirmed bool
}

// Сентинелы для выхода из транзакции без применения
var (
	errTransitionDuplicate = errors.New("transition duplicate")
	errTransitionStale     = errors.New("transition stale")
)

// TierService - Tier Ledger: авторитетное состояние тарифа пользователя
// и единственная точка его мутации
type TierService interface {
	// CurrentTier возвращает эффективный тариф на момент чтения.
	// Lazy expiry: истекший paid/enterprise отдается как free без
	// мутации хранилища - фоновых таймеров в ledger нет.
	CurrentTier(db *gorm.DB, userID string) (*dto.TierInfo, error)

	// ApplyTransition идемпотентно применяет событие перехода.
	// Duplicate-check и запись выполняются одной транзакцией.
	ApplyTransition(db *gorm.DB, userID string, event *TransitionEvent) (*TransitionResult, error)

	// Upgrade - явный запрос апгрейда (source=explicit-request)
	Upgrade(db *gorm.DB, userID, planCode string) (*TransitionResult, error)

	// Downgrade - явный даунгрейд: сразу free, окно подписки обнуляется
	Downgrade(db *gorm.DB, userID string) (*TransitionResult, error)

	// MarkAtRisk помечает подписку под угрозой (payment-failed grace).
	// Тариф не меняется: даунгрейд произойдет лениво по истечении окна.
	MarkAtRisk(db *gorm.DB, userID string) error

	// ListPlans - каталог активных планов
	ListPlans(db *gorm.DB) ([]dto.PlanDTO, error)

	// History - примененные переходы тарифа, новые первыми
	History(db *gorm.DB, userID string, limit int) ([]dto.TierEventDTO, error)
}

type tierServiceImpl struct {
	userRepo         repositories.UserRepository
	subscriptionRepo repositories.SubscriptionRepository
}

// NewTierService создает новый TierService
func NewTierService(
	userRepo repositories.UserRepository,
	subscriptionRepo repositories.SubscriptionRepository,
) TierService {
	return &tierServiceImpl{
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
	}
}

func (s *tierServiceImpl) CurrentTier(db *gorm.DB, userID string) (*dto.TierInfo, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	return effectiveTier(user, time.Now()), nil
}

// effectiveTier вычисляет тариф относительно now, не трогая хранилище
func effectiveTier(user *models.User, now time.Time) *dto.TierInfo {
	if user.Tier != models.TierFree && user.SubscriptionEnd != nil && now.After(*user.SubscriptionEnd) {
		return &dto.TierInfo{Tier: models.TierFree, AtRisk: false}
	}
	return &dto.TierInfo{
		Tier:            user.Tier,
		SubscriptionEnd: user.SubscriptionEnd,
		AtRisk:          user.SubscriptionAtRisk,
	}
}

func (s *tierServiceImpl) ApplyTransition(db *gorm.DB, userID string, event *TransitionEvent) (*TransitionResult, error) {
	if !models.ValidTier(event.TargetTier) {
		return &TransitionResult{Status: TransitionRejected, Reason: "unknown_tier"}, nil
	}
	if event.TargetTier != models.TierFree && event.PeriodEnd != nil && event.PeriodStart != nil &&
		event.PeriodEnd.Before(*event.PeriodStart) {
		return &TransitionResult{Status: TransitionRejected, Reason: "invalid_window"}, nil
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByID(tx, userID)
		if err != nil {
			return err
		}

		// Dedup-маркер проверяется ДО устаревания: повторная доставка уже
		// примененного события - всегда no-op Duplicate, даже если после
		// него успели примениться более новые события.
		if _, err := s.subscriptionRepo.FindTierEvent(tx, userID, event.ExternalEventID); err == nil {
			return errTransitionDuplicate
		} else if !errors.Is(err, repositories.ErrEventNotFound) {
			return err
		}

		// Упорядочивание: last-write-wins по времени СОБЫТИЯ, не доставки.
		// Событие строго старше последнего примененного - устарело.
		// Уникальный индекс - жесткая граница против гонки redelivery.
		if user.LastEventAt != nil && event.EventAt.Before(*user.LastEventAt) {
			return errTransitionStale
		}

		record := &models.TierEvent{
			UserID:          userID,
			ExternalEventID: event.ExternalEventID,
			Source:          event.Source,
			TargetTier:      event.TargetTier,
			PeriodStart:     event.PeriodStart,
			PeriodEnd:       event.PeriodEnd,
			EventAt:         event.EventAt,
			Payload:         datatypes.JSON(event.Payload),
		}
		if err := s.subscriptionRepo.CreateTierEvent(tx, record); err != nil {
			if apperrors.Is(err, repositories.ErrEventAlreadyApplied) {
				return errTransitionDuplicate
			}
			return err
		}

		user.Tier = event.TargetTier
		user.SubscriptionStart = event.PeriodStart
		user.SubscriptionEnd = event.PeriodEnd
		user.LastEventID = event.ExternalEventID
		eventAt := event.EventAt
		user.LastEventAt = &eventAt
		if event.SubscriptionRef != "" {
			user.BillingSubscriptionRef = event.SubscriptionRef
		}
		if event.PaymentConfirmed {
			user.PaymentMethodAttached = true
		}
		if event.TargetTier == models.TierFree {
			user.SubscriptionStart = nil
			user.SubscriptionEnd = nil
		}
		// Свежее активное окно снимает флаг риска
		user.SubscriptionAtRisk = false

		return s.userRepo.Update(tx, user)
	})

	switch {
	case txErr == nil:
		return &TransitionResult{Status: TransitionApplied}, nil
	case errors.Is(txErr, errTransitionDuplicate):
		return &TransitionResult{Status: TransitionDuplicate}, nil
	case errors.Is(txErr, errTransitionStale):
		return &TransitionResult{Status: TransitionRejected, Reason: "stale_event"}, nil
	case errors.Is(txErr, repositories.ErrUserNotFound):
		return nil, apperrors.ErrNotFound(txErr)
	default:
		return nil, apperrors.InternalError(txErr)
	}
}

func (s *tierServiceImpl) Upgrade(db *gorm.DB, userID, planCode string) (*TransitionResult, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	// Апгрейд без подтвержденного способа оплаты не применяется
	if !user.PaymentMethodAttached {
		return &TransitionResult{Status: TransitionRejected, Reason: "payment_required"}, nil
	}

	plan, err := s.subscriptionRepo.FindPlanByCode(db, planCode)
	if err != nil {
		if apperrors.Is(err, repositories.ErrPlanNotFound) {
			return nil, apperrors.ErrUnknownPlan
		}
		return nil, apperrors.InternalError(err)
	}

	now := time.Now()
	end := planPeriodEnd(plan.Interval, now)

	return s.ApplyTransition(db, userID, &TransitionEvent{
		ExternalEventID: fmt.Sprintf("explicit-%s", uuid.NewString()),
		Source:          models.EventSourceExplicit,
		TargetTier:      plan.Tier,
		PeriodStart:     &now,
		PeriodEnd:       &end,
		EventAt:         now,
	})
}

func (s *tierServiceImpl) Downgrade(db *gorm.DB, userID string) (*TransitionResult, error) {
	now := time.Now()
	return s.ApplyTransition(db, userID, &TransitionEvent{
		ExternalEventID: fmt.Sprintf("explicit-%s", uuid.NewString()),
		Source:          models.EventSourceExplicit,
		TargetTier:      models.TierFree,
		EventAt:         now,
	})
}

func (s *tierServiceImpl) MarkAtRisk(db *gorm.DB, userID string) error {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}

	user.SubscriptionAtRisk = true
	if err := s.userRepo.Update(db, user); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *tierServiceImpl) ListPlans(db *gorm.DB) ([]dto.PlanDTO, error) {
	plans, err := s.subscriptionRepo.GetActivePlans(db)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]dto.PlanDTO, 0, len(plans))
	for _, plan := range plans {
		result = append(result, dto.PlanDTO{
			Code:     plan.Code,
			Name:     plan.Name,
			Tier:     plan.Tier,
			Interval: plan.Interval,
			Price:    plan.Price,
			Currency: plan.Currency,
		})
	}
	return result, nil
}

func (s *tierServiceImpl) History(db *gorm.DB, userID string, limit int) ([]dto.TierEventDTO, error) {
	events, err := s.subscriptionRepo.ListTierEventsByUser(db, userID, limit)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]dto.TierEventDTO, 0, len(events))
	for _, event := range events {
		result = append(result, dto.TierEventDTO{
			ExternalEventID: event.ExternalEventID,
			Source:          event.Source,
			TargetTier:      event.TargetTier,
			PeriodStart:     event.PeriodStart,
			PeriodEnd:       event.PeriodEnd,
			EventAt:         event.EventAt,
		})
	}
	return result, nil
}

// planPeriodEnd вычисляет конец окна от now по интервалу плана
func planPeriodEnd(interval models.PlanInterval, now time.Time) time.Time {
	if interval == models.PlanIntervalAnnual {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}
