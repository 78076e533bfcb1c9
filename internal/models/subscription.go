package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionPlan - каталог планов для явного апгрейда
type SubscriptionPlan struct {
	BaseModel
	Code     string         `gorm:"uniqueIndex;not null"` // "paid_monthly", "paid_annual", ...
	Name     string         `gorm:"not null"`
	Tier     Tier           `gorm:"type:varchar(20);not null"`
	Interval PlanInterval   `gorm:"type:varchar(20);not null"`
	Price    float64        `gorm:"not null"`
	Currency string         `gorm:"default:'USD'"`
	Features datatypes.JSON `gorm:"type:jsonb"` // {"realtime_quotes": true, ...}
	IsActive bool           `gorm:"default:true"`
}

// TierEvent - примененное событие перехода тарифа. Insert-only:
// таблица одновременно аудит-лог и dedup-маркер для Tier Ledger.
// Уникальность (user_id, external_event_id) гарантирует идемпотентность
// применения при at-least-once доставке вебхуков.
type TierEvent struct {
	BaseModel
	UserID          string         `gorm:"not null;index;uniqueIndex:ux_tier_events_user_event,priority:1"`
	ExternalEventID string         `gorm:"not null;uniqueIndex:ux_tier_events_user_event,priority:2"`
	Source          EventSource    `gorm:"type:varchar(30);not null"`
	TargetTier      Tier           `gorm:"type:varchar(20);not null"`
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	EventAt         time.Time      `gorm:"not null;index"` // время события у провайдера, не время доставки
	Payload         datatypes.JSON `gorm:"type:jsonb"`
}
