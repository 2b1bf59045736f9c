package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// Account is the billing view of a user account. Identity fields belong to the account service.
type Account struct {
	ID                      uuid.UUID                `gorm:"type:uuid;primaryKey"`
	Email                   string                   `gorm:"column:email;not null;uniqueIndex"`
	Role                    enums.AccountRole        `gorm:"column:role;type:account_role;not null"`
	StripeCustomerID        *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	SubscriptionID          *string                  `gorm:"column:subscription_id"`
	CanceledSubscriptionID  *string                  `gorm:"column:canceled_subscription_id"`
	SubscriptionStatus      enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status;not null;default:'no_subscription'"`
	PlanType                *string                  `gorm:"column:plan_type"`
	BillingCycle            *enums.BillingCycle      `gorm:"column:billing_cycle;type:billing_cycle"`
	CurrentPeriodStart      *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd        *time.Time               `gorm:"column:current_period_end"`
	TrialEnd                *time.Time               `gorm:"column:trial_end"`
	PaymentMethodConnected  bool                     `gorm:"column:payment_method_connected;not null;default:false"`
	LastFailedPaymentAt     *time.Time               `gorm:"column:last_failed_payment_at"`
	LastSubscriptionEventAt *time.Time               `gorm:"column:last_subscription_event_at"`
	Version                 int64                    `gorm:"column:version;not null;default:1"`
	BillingHistory          []PaymentRecord          `gorm:"foreignKey:AccountID;references:ID"`
	CreatedAt               time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCurrentSubscription reports whether subscriptionID is the one the account currently holds.
func (a *Account) IsCurrentSubscription(subscriptionID string) bool {
	return a.SubscriptionID != nil && *a.SubscriptionID == subscriptionID
}

// IsCanceledSubscription reports whether a terminal event has been observed for subscriptionID.
func (a *Account) IsCanceledSubscription(subscriptionID string) bool {
	return a.CanceledSubscriptionID != nil && *a.CanceledSubscriptionID == subscriptionID
}
