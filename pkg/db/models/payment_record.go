package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// PaymentRecord is one immutable entry in an account's billing history.
// InvoiceID holds the invoice id, or the payment intent id for one-off charges.
type PaymentRecord struct {
	ID         uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID                 `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_payment_records_account_invoice"`
	InvoiceID  string                    `gorm:"column:invoice_id;not null;uniqueIndex:ux_payment_records_account_invoice"`
	EventID    string                    `gorm:"column:event_id;not null"`
	Amount     decimal.Decimal           `gorm:"column:amount;type:numeric(18,3);not null"`
	Currency   string                    `gorm:"column:currency;not null"`
	Status     enums.PaymentRecordStatus `gorm:"column:status;type:payment_record_status;not null"`
	OccurredAt time.Time                 `gorm:"column:occurred_at;not null"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
