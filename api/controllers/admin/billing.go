package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/releasehub-billing/api/responses"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

// AccountReader describes the account lookups used by the admin billing view.
type AccountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListPaymentRecords(ctx context.Context, accountID uuid.UUID) ([]models.PaymentRecord, error)
}

// WebhookEventReader loads processed-event records.
type WebhookEventReader interface {
	FindByID(ctx context.Context, id string) (*models.WebhookEvent, error)
}

type paymentRecordResponse struct {
	InvoiceID  string `json:"invoice_id"`
	EventID    string `json:"event_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

type accountBillingResponse struct {
	AccountID               string                  `json:"account_id"`
	Email                   string                  `json:"email"`
	Role                    string                  `json:"role"`
	StripeCustomerID        *string                 `json:"stripe_customer_id"`
	SubscriptionID          *string                 `json:"subscription_id"`
	CanceledSubscriptionID  *string                 `json:"canceled_subscription_id"`
	SubscriptionStatus      string                  `json:"subscription_status"`
	PlanType                *string                 `json:"plan_type"`
	BillingCycle            *string                 `json:"billing_cycle"`
	CurrentPeriodStart      *string                 `json:"current_period_start"`
	CurrentPeriodEnd        *string                 `json:"current_period_end"`
	TrialEnd                *string                 `json:"trial_end"`
	PaymentMethodConnected  bool                    `json:"payment_method_connected"`
	LastFailedPaymentAt     *string                 `json:"last_failed_payment_at"`
	LastSubscriptionEventAt *string                 `json:"last_subscription_event_at"`
	Version                 int64                   `json:"version"`
	BillingHistory          []paymentRecordResponse `json:"billing_history"`
}

type webhookEventResponse struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Livemode       bool    `json:"livemode"`
	PayloadHash    string  `json:"payload_hash"`
	EventCreatedAt string  `json:"event_created_at"`
	Outcome        string  `json:"outcome"`
	AccountID      *string `json:"account_id"`
	ReceivedAt     string  `json:"received_at"`
	ProcessedAt    *string `json:"processed_at"`
}

// AccountBilling returns the billing fields and payment history of one account.
func AccountBilling(reader AccountReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reader == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account reader unavailable"))
			return
		}

		accountID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "accountId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}
		if logg != nil {
			ctx = logg.WithAccountID(ctx, accountID.String())
		}

		account, err := reader.FindByID(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account"))
			return
		}
		if account == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "account not found"))
			return
		}

		records, err := reader.ListPaymentRecords(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing history"))
			return
		}

		responses.WriteSuccess(w, mapAccountBilling(account, records))
	}
}

// WebhookEvent returns the stored processing record for a Stripe event id.
func WebhookEvent(reader WebhookEventReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reader == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook event reader unavailable"))
			return
		}

		eventID := strings.TrimSpace(chi.URLParam(r, "eventId"))
		if !strings.HasPrefix(eventID, "evt_") {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event id"))
			return
		}

		event, err := reader.FindByID(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load webhook event"))
			return
		}
		if event == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "webhook event not found"))
			return
		}

		responses.WriteSuccess(w, mapWebhookEvent(event))
	}
}

func mapAccountBilling(account *models.Account, records []models.PaymentRecord) accountBillingResponse {
	resp := accountBillingResponse{
		AccountID:               account.ID.String(),
		Email:                   account.Email,
		Role:                    string(account.Role),
		StripeCustomerID:        account.StripeCustomerID,
		SubscriptionID:          account.SubscriptionID,
		CanceledSubscriptionID:  account.CanceledSubscriptionID,
		SubscriptionStatus:      account.SubscriptionStatus.String(),
		PlanType:                account.PlanType,
		CurrentPeriodStart:      formatTime(account.CurrentPeriodStart),
		CurrentPeriodEnd:        formatTime(account.CurrentPeriodEnd),
		TrialEnd:                formatTime(account.TrialEnd),
		PaymentMethodConnected:  account.PaymentMethodConnected,
		LastFailedPaymentAt:     formatTime(account.LastFailedPaymentAt),
		LastSubscriptionEventAt: formatTime(account.LastSubscriptionEventAt),
		Version:                 account.Version,
		BillingHistory:          make([]paymentRecordResponse, 0, len(records)),
	}
	if account.BillingCycle != nil {
		cycle := string(*account.BillingCycle)
		resp.BillingCycle = &cycle
	}
	for _, record := range records {
		resp.BillingHistory = append(resp.BillingHistory, paymentRecordResponse{
			InvoiceID:  record.InvoiceID,
			EventID:    record.EventID,
			Amount:     record.Amount.String(),
			Currency:   record.Currency,
			Status:     string(record.Status),
			OccurredAt: record.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

func mapWebhookEvent(event *models.WebhookEvent) webhookEventResponse {
	resp := webhookEventResponse{
		ID:             event.ID,
		Type:           event.Type,
		Livemode:       event.Livemode,
		PayloadHash:    event.PayloadHash,
		EventCreatedAt: event.EventCreatedAt.UTC().Format(time.RFC3339),
		Outcome:        event.Outcome.String(),
		ReceivedAt:     event.ReceivedAt.UTC().Format(time.RFC3339),
		ProcessedAt:    formatTime(event.ProcessedAt),
	}
	if event.AccountID != nil {
		id := event.AccountID.String()
		resp.AccountID = &id
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
