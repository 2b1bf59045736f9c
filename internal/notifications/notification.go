package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// Notification is an outward alert raised by a committed webhook event.
type Notification struct {
	Type       enums.NotificationType `json:"type"`
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	AccountID  *uuid.UUID             `json:"account_id,omitempty"`
	CustomerID string                 `json:"customer_id,omitempty"`
	ObjectID   string                 `json:"object_id,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Dispatcher delivers notifications. Dispatch must not block the caller on delivery
// and must not fail the event that raised the notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

func (n Notification) fields() map[string]any {
	fields := map[string]any{
		"notification_type": n.Type.String(),
		"event_id":          n.EventID,
		"event_type":        n.EventType,
		"requires_review":   n.Type.RequiresReview(),
	}
	if n.AccountID != nil {
		fields["account_id"] = n.AccountID.String()
	}
	if n.CustomerID != "" {
		fields["customer_id"] = n.CustomerID
	}
	if n.ObjectID != "" {
		fields["object_id"] = n.ObjectID
	}
	if n.Reason != "" {
		fields["reason"] = n.Reason
	}
	return fields
}
