package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// WebhookEvent is the idempotency record for a processed Stripe event.
type WebhookEvent struct {
	ID             string                    `gorm:"column:id;primaryKey"`
	Type           string                    `gorm:"column:type;not null"`
	Livemode       bool                      `gorm:"column:livemode;not null;default:false"`
	PayloadHash    string                    `gorm:"column:payload_hash;not null"`
	EventCreatedAt time.Time                 `gorm:"column:event_created_at;not null"`
	Outcome        enums.WebhookEventOutcome `gorm:"column:outcome"`
	AccountID      *uuid.UUID                `gorm:"column:account_id;type:uuid"`
	ReceivedAt     time.Time                 `gorm:"column:received_at;not null"`
	ProcessedAt    *time.Time                `gorm:"column:processed_at"`
}
