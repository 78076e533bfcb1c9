package services

import (
	"stockwatch_backend/internal/email"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	AuthService      AuthService
	UserService      UserService
	TierService      TierService
	BillingService   BillingService
	QuotaService     QuotaService
	WatchlistService WatchlistService
	EmailProvider    email.Provider
}
