package dto

import (
	"time"

	"stockwatch_backend/internal/models"
)

// UpgradeRequest - явный запрос апгрейда тарифа
type UpgradeRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

// TierInfo - эффективное состояние тарифа на момент чтения.
// Lazy expiry уже применен: истекший paid отдается как free.
type TierInfo struct {
	Tier            models.Tier `json:"tier"`
	SubscriptionEnd *time.Time  `json:"subscription_end,omitempty"`
	AtRisk          bool        `json:"at_risk"`
}

// TierEventDTO - примененный переход тарифа в истории подписки
type TierEventDTO struct {
	ExternalEventID string             `json:"external_event_id"`
	Source          models.EventSource `json:"source"`
	TargetTier      models.Tier        `json:"target_tier"`
	PeriodStart     *time.Time         `json:"period_start,omitempty"`
	PeriodEnd       *time.Time         `json:"period_end,omitempty"`
	EventAt         time.Time          `json:"event_at"`
}

// PlanDTO - элемент каталога планов
type PlanDTO struct {
	Code     string              `json:"code"`
	Name     string              `json:"name"`
	Tier     models.Tier         `json:"tier"`
	Interval models.PlanInterval `json:"interval"`
	Price    float64             `json:"price"`
	Currency string              `json:"currency"`
}
