package models

type Tier string
type TokenPurpose string
type PlanInterval string
type EventSource string
type BillingEventType string

const (
	TierFree       Tier = "free"
	TierPaid       Tier = "paid"
	TierEnterprise Tier = "enterprise"

	TokenPurposePasswordReset     TokenPurpose = "password_reset"
	TokenPurposeEmailVerification TokenPurpose = "email_verification"

	PlanIntervalMonthly PlanInterval = "monthly"
	PlanIntervalAnnual  PlanInterval = "annual"

	EventSourceWebhook  EventSource = "billing-webhook"
	EventSourceExplicit EventSource = "explicit-request"

	BillingEventSubscriptionCreated BillingEventType = "subscription.created"
	BillingEventSubscriptionUpdated BillingEventType = "subscription.updated"
	BillingEventSubscriptionDeleted BillingEventType = "subscription.deleted"
	BillingEventPaymentFailed       BillingEventType = "payment.failed"
	BillingEventUnknown             BillingEventType = "unknown"
)

// ValidTier сообщает, является ли значение известным тарифом
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierPaid, TierEnterprise:
		return true
	}
	return false
}
