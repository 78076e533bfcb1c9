package models

import "time"

type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null"` // хранится в нижнем регистре
	PasswordHash string `gorm:"not null"`
	IsVerified   bool   `gorm:"default:false"`
	IsActive     bool   `gorm:"default:true"` // юзеры не удаляются, только деактивируются

	// Tier Ledger: авторитетное состояние тарифа
	Tier                   Tier       `gorm:"type:varchar(20);not null;default:'free'"`
	SubscriptionStart      *time.Time
	SubscriptionEnd        *time.Time
	SubscriptionAtRisk     bool   `gorm:"default:false"` // payment-failed grace флаг
	BillingCustomerRef     string `gorm:"index"`
	BillingSubscriptionRef string
	PaymentMethodAttached  bool `gorm:"default:false"`

	// Идемпотентность и упорядочивание внешних событий
	LastEventID string
	LastEventAt *time.Time

	LastLoginAt *time.Time

	// Relations
	RefreshCredentials []RefreshCredential `gorm:"foreignKey:UserID"`
	WatchlistEntries   []WatchlistEntry    `gorm:"foreignKey:UserID"`
}
