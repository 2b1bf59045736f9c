package stripewebhook

import (
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/internal/accounts"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

func (s *Service) handleInvoicePaid(ec *eventContext) (outcome, error) {
	var inv stripe.Invoice
	if err := decodeObject(ec.event, &inv, "invoice"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(inv.Customer)
	res, err := ec.resolve(customerID, inv.CustomerEmail)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account
	ctx := s.logg.WithFields(s.logg.WithAccountID(ec.ctx, account.ID.String()), map[string]any{
		"invoice_id":      inv.ID,
		"subscription_id": invoiceSubscriptionID(ec.event),
	})

	recorded := false
	if inv.AmountPaid > 0 {
		recorded, err = s.appendRecord(ec, &models.PaymentRecord{
			AccountID:  account.ID,
			InvoiceID:  inv.ID,
			EventID:    ec.event.ID,
			Amount:     majorUnits(inv.AmountPaid, inv.Currency),
			Currency:   strings.ToUpper(string(inv.Currency)),
			Status:     enums.PaymentRecordStatusPaid,
			OccurredAt: invoicePaidAt(&inv, ec.at),
		})
		if err != nil {
			return outcome{}, err
		}
		if !recorded {
			s.logg.Debug(ctx, "invoice already in billing history")
		}
	} else {
		s.logg.Debug(ctx, "zero amount invoice not recorded")
	}

	patch := accounts.NewPatch()
	if next, changed := account.SubscriptionStatus.AfterPaymentSucceeded(inv.AmountPaid > 0); changed && next != account.SubscriptionStatus {
		patch.Status(next)
	}
	if res.NeedsCustomerLink(customerID) {
		patch.LinkCustomer(customerID)
	}
	if err := ec.update(account, patch); err != nil {
		return outcome{}, err
	}

	if !recorded && patch.Empty() {
		return outcomeFor(enums.WebhookEventOutcomeNoop, account), nil
	}
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

func (s *Service) handleInvoicePaymentFailed(ec *eventContext) (outcome, error) {
	var inv stripe.Invoice
	if err := decodeObject(ec.event, &inv, "invoice"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(inv.Customer)
	res, err := ec.resolve(customerID, inv.CustomerEmail)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		ec.notify(enums.NotificationTypePaymentFailed, nil, customerID, inv.ID, "invoice payment failed")
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account

	patch := accounts.NewPatch().LastFailedPaymentAt(ec.at)
	if next, changed := account.SubscriptionStatus.AfterPaymentFailed(); changed && next != account.SubscriptionStatus {
		patch.Status(next)
	}
	if res.NeedsCustomerLink(customerID) {
		patch.LinkCustomer(customerID)
	}
	if err := ec.update(account, patch); err != nil {
		return outcome{}, err
	}

	ec.notify(enums.NotificationTypePaymentFailed, account, customerID, inv.ID, "invoice payment failed")
	s.logg.Info(s.logg.WithFields(s.logg.WithAccountID(ec.ctx, account.ID.String()), map[string]any{
		"invoice_id":      inv.ID,
		"subscription_id": invoiceSubscriptionID(ec.event),
	}), "invoice payment failed")
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

// handlePaymentIntentSucceeded records one-off payments. Intents created for an invoice are
// left to the invoice events so the same charge is not recorded twice.
func (s *Service) handlePaymentIntentSucceeded(ec *eventContext) (outcome, error) {
	if !s.recordPaymentIntents || ec.event.GetObjectValue("invoice") != "" {
		return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
	}
	var pi stripe.PaymentIntent
	if err := decodeObject(ec.event, &pi, "payment intent"); err != nil {
		return outcome{}, err
	}
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	if amount <= 0 {
		return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
	}

	customerID := customerIDOf(pi.Customer)
	res, err := ec.resolve(customerID, pi.ReceiptEmail)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account

	recorded, err := s.appendRecord(ec, &models.PaymentRecord{
		AccountID:  account.ID,
		InvoiceID:  pi.ID,
		EventID:    ec.event.ID,
		Amount:     majorUnits(amount, pi.Currency),
		Currency:   strings.ToUpper(string(pi.Currency)),
		Status:     enums.PaymentRecordStatusPaid,
		OccurredAt: ec.at,
	})
	if err != nil {
		return outcome{}, err
	}
	if !recorded {
		return outcomeFor(enums.WebhookEventOutcomeNoop, account), nil
	}
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

func (s *Service) handlePaymentIntentFailed(ec *eventContext) (outcome, error) {
	var pi stripe.PaymentIntent
	if err := decodeObject(ec.event, &pi, "payment intent"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(pi.Customer)
	res, err := ec.resolve(customerID, pi.ReceiptEmail)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account

	if err := ec.update(account, accounts.NewPatch().LastFailedPaymentAt(ec.at)); err != nil {
		return outcome{}, err
	}
	fields := map[string]any{"payment_intent_id": pi.ID}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		fields["failure"] = pi.LastPaymentError.Msg
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithAccountID(ec.ctx, account.ID.String()), fields), "payment intent failed")
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

func (s *Service) appendRecord(ec *eventContext, record *models.PaymentRecord) (bool, error) {
	inserted, err := ec.accounts.AppendPaymentRecord(ec.ctx, record)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment record")
	}
	return inserted, nil
}

func (s *Service) handleDisputeCreated(ec *eventContext) (outcome, error) {
	return s.alertDispute(ec, enums.NotificationTypeDisputeCreated)
}

func (s *Service) handleDisputeClosed(ec *eventContext) (outcome, error) {
	return s.alertDispute(ec, enums.NotificationTypeDisputeClosed)
}

// alertDispute raises a review alert. Disputes never change the account automatically.
func (s *Service) alertDispute(ec *eventContext, kind enums.NotificationType) (outcome, error) {
	var dispute stripe.Dispute
	if err := decodeObject(ec.event, &dispute, "dispute"); err != nil {
		return outcome{}, err
	}
	reason := string(dispute.Reason)
	if kind == enums.NotificationTypeDisputeClosed {
		reason = string(dispute.Status)
	}
	if charge := ec.event.GetObjectValue("charge"); charge != "" {
		reason += " charge " + charge
	}
	ec.notify(kind, nil, "", dispute.ID, strings.TrimSpace(reason))
	return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
}

func (s *Service) handleEarlyFraudWarning(ec *eventContext) (outcome, error) {
	var warning stripe.RadarEarlyFraudWarning
	if err := decodeObject(ec.event, &warning, "early fraud warning"); err != nil {
		return outcome{}, err
	}
	reason := string(warning.FraudType)
	if charge := ec.event.GetObjectValue("charge"); charge != "" {
		reason += " charge " + charge
	}
	ec.notify(enums.NotificationTypeFraudWarning, nil, "", warning.ID, strings.TrimSpace(reason))
	return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
}
