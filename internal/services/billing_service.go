package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/logger"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// BillingService - Billing Reconciler: прием и применение событий
// от платежного провайдера
type BillingService interface {
	// HandleEvent проверяет подпись и применяет событие.
	// nil означает Accepted: событие принято, дублировать доставку не нужно.
	// Ошибка верификации - единственный повод отдать провайдеру отказ.
	HandleEvent(db *gorm.DB, payload []byte, signature string) error
}

type billingServiceImpl struct {
	userRepo    repositories.UserRepository
	tierService TierService
	cfg         *config.Config
}

// NewBillingService создает новый BillingService
func NewBillingService(userRepo repositories.UserRepository, tierService TierService, cfg *config.Config) BillingService {
	return &billingServiceImpl{
		userRepo:    userRepo,
		tierService: tierService,
		cfg:         cfg,
	}
}

// webhookEnvelope - сырой формат события провайдера
type webhookEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Customer           string `json:"customer"`
		Subscription       string `json:"subscription"`
		Tier               string `json:"tier"`
		CurrentPeriodStart int64  `json:"current_period_start"`
		CurrentPeriodEnd   int64  `json:"current_period_end"`
	} `json:"data"`
}

func (s *billingServiceImpl) HandleEvent(db *gorm.DB, payload []byte, signature string) error {
	if !s.verifySignature(payload, signature) {
		// Детали не раскрываются: подпись, формат и тайминг снаружи
		// неразличимы
		logger.Warn("billing webhook rejected: bad signature")
		return apperrors.ErrWebhookVerification
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		logger.Warn("billing webhook rejected: malformed payload", "error", err)
		return apperrors.ErrWebhookVerification
	}
	if envelope.ID == "" || envelope.Data.Customer == "" {
		logger.Warn("billing webhook rejected: missing required fields", "event_type", envelope.Type)
		return apperrors.ErrWebhookVerification
	}

	eventType := classifyEvent(envelope.Type)
	if eventType == models.BillingEventUnknown {
		// Неизвестные типы подтверждаются без эффекта, чтобы провайдер
		// не ретраил их бесконечно
		logger.Info("billing webhook: unknown event type acknowledged",
			"event_type", envelope.Type, "event_id", envelope.ID)
		return nil
	}

	user, err := s.userRepo.FindByBillingCustomerRef(db, envelope.Data.Customer)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			logger.Warn("billing webhook: no user for customer ref, acknowledged",
				"customer_ref", envelope.Data.Customer, "event_id", envelope.ID)
			return nil
		}
		return apperrors.InternalError(err)
	}

	switch eventType {
	case models.BillingEventSubscriptionCreated, models.BillingEventSubscriptionUpdated:
		return s.applySubscriptionEvent(db, user, &envelope)
	case models.BillingEventSubscriptionDeleted:
		return s.applyCancellation(db, user, &envelope)
	case models.BillingEventPaymentFailed:
		return s.applyPaymentFailure(db, user, &envelope)
	}
	return nil
}

// applySubscriptionEvent - создание/обновление подписки: перевод на
// целевой тариф с окном из события
func (s *billingServiceImpl) applySubscriptionEvent(db *gorm.DB, user *models.User, envelope *webhookEnvelope) error {
	targetTier := models.Tier(envelope.Data.Tier)
	if !models.ValidTier(targetTier) {
		logger.Warn("billing webhook: unknown tier in event, acknowledged",
			"tier", envelope.Data.Tier, "event_id", envelope.ID)
		return nil
	}

	periodStart := unixTimePtr(envelope.Data.CurrentPeriodStart)
	periodEnd := unixTimePtr(envelope.Data.CurrentPeriodEnd)

	event := &TransitionEvent{
		ExternalEventID: envelope.ID,
		Source:          models.EventSourceWebhook,
		TargetTier:      targetTier,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		EventAt:         time.Unix(envelope.Created, 0),
		SubscriptionRef: envelope.Data.Subscription,
		Payload:         rawPayload(envelope),
		// Успешное создание подписки подтверждает наличие способа оплаты
		PaymentConfirmed: true,
	}

	result, err := s.tierService.ApplyTransition(db, user.ID, event)
	if err != nil {
		return apperrors.InternalError(err)
	}
	s.logTransitionResult(user.ID, envelope, result)
	return nil
}

// applyCancellation - удаление подписки: немедленный перевод на free
func (s *billingServiceImpl) applyCancellation(db *gorm.DB, user *models.User, envelope *webhookEnvelope) error {
	event := &TransitionEvent{
		ExternalEventID: envelope.ID,
		Source:          models.EventSourceWebhook,
		TargetTier:      models.TierFree,
		EventAt:         time.Unix(envelope.Created, 0),
		SubscriptionRef: envelope.Data.Subscription,
		Payload:         rawPayload(envelope),
	}

	result, err := s.tierService.ApplyTransition(db, user.ID, event)
	if err != nil {
		return apperrors.InternalError(err)
	}
	s.logTransitionResult(user.ID, envelope, result)
	return nil
}

// applyPaymentFailure - неуспешный платеж: grace-период.
// Тариф НЕ понижается, аккаунт лишь помечается как at-risk - провайдер
// сам пришлет subscription.deleted, если ретраи оплаты исчерпаются.
func (s *billingServiceImpl) applyPaymentFailure(db *gorm.DB, user *models.User, envelope *webhookEnvelope) error {
	if err := s.tierService.MarkAtRisk(db, user.ID); err != nil {
		return apperrors.InternalError(err)
	}
	logger.Info("billing webhook: payment failed, account marked at-risk",
		"user_id", user.ID, "event_id", envelope.ID)
	return nil
}

func (s *billingServiceImpl) logTransitionResult(userID string, envelope *webhookEnvelope, result *TransitionResult) {
	switch result.Status {
	case TransitionApplied:
		logger.Info("billing webhook: transition applied",
			"user_id", userID, "event_id", envelope.ID, "event_type", envelope.Type)
	case TransitionDuplicate:
		logger.Info("billing webhook: duplicate event acknowledged",
			"user_id", userID, "event_id", envelope.ID)
	case TransitionRejected:
		// Stale события подтверждаются: повторная доставка не изменит
		// порядок
		logger.Warn("billing webhook: transition rejected, acknowledged",
			"user_id", userID, "event_id", envelope.ID, "reason", result.Reason)
	}
}

// verifySignature сверяет HMAC-SHA256 подпись тела запроса
func (s *billingServiceImpl) verifySignature(payload []byte, signature string) bool {
	if s.cfg.Billing.WebhookSecret == "" || signature == "" {
		return false
	}

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.Billing.WebhookSecret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// classifyEvent сводит строковый тип провайдера к закрытому набору
func classifyEvent(raw string) models.BillingEventType {
	switch raw {
	case string(models.BillingEventSubscriptionCreated):
		return models.BillingEventSubscriptionCreated
	case string(models.BillingEventSubscriptionUpdated):
		return models.BillingEventSubscriptionUpdated
	case string(models.BillingEventSubscriptionDeleted):
		return models.BillingEventSubscriptionDeleted
	case string(models.BillingEventPaymentFailed):
		return models.BillingEventPaymentFailed
	default:
		return models.BillingEventUnknown
	}
}

func unixTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}

func rawPayload(envelope *webhookEnvelope) []byte {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil
	}
	return raw
}
