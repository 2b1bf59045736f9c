package stripewebhook

import (
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/internal/accounts"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

// handleCustomerUpsert links a Stripe customer onto the account with the same email.
func (s *Service) handleCustomerUpsert(ec *eventContext) (outcome, error) {
	var customer stripe.Customer
	if err := decodeObject(ec.event, &customer, "customer"); err != nil {
		return outcome{}, err
	}
	res, err := ec.resolve(customer.ID, customer.Email)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customer.ID), nil
	}
	return s.linkCustomer(ec, res, customer.ID)
}

func (s *Service) handleCustomerDeleted(ec *eventContext) (outcome, error) {
	var customer stripe.Customer
	if err := decodeObject(ec.event, &customer, "customer"); err != nil {
		return outcome{}, err
	}
	account, err := ec.accounts.FindByCustomerID(ec.ctx, customer.ID)
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account by customer id")
	}
	if account == nil {
		return s.accountNotFound(ec, customer.ID), nil
	}
	return s.setPaymentMethodConnected(ec, account, false)
}

func (s *Service) handlePaymentMethodAttached(ec *eventContext) (outcome, error) {
	var pm stripe.PaymentMethod
	if err := decodeObject(ec.event, &pm, "payment method"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(pm.Customer)
	if customerID == "" {
		return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
	}
	res, err := ec.resolve(customerID, "")
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	return s.setPaymentMethodConnected(ec, res.Account, true)
}

// handlePaymentMethodDetached reads the customer from the previous attributes, since a
// detached payment method no longer carries it.
func (s *Service) handlePaymentMethodDetached(ec *eventContext) (outcome, error) {
	customerID := ec.event.GetPreviousValue("customer")
	if customerID == "" {
		var pm stripe.PaymentMethod
		if err := decodeObject(ec.event, &pm, "payment method"); err != nil {
			return outcome{}, err
		}
		customerID = customerIDOf(pm.Customer)
	}
	if customerID == "" {
		return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
	}
	account, err := ec.accounts.FindByCustomerID(ec.ctx, customerID)
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account by customer id")
	}
	if account == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	return s.setPaymentMethodConnected(ec, account, false)
}

func (s *Service) setPaymentMethodConnected(ec *eventContext, account *models.Account, connected bool) (outcome, error) {
	if account.PaymentMethodConnected == connected {
		return outcomeFor(enums.WebhookEventOutcomeNoop, account), nil
	}
	if err := ec.update(account, accounts.NewPatch().PaymentMethodConnected(connected)); err != nil {
		return outcome{}, err
	}
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

// handleCheckoutCompleted links the checkout's customer using the client reference id
// (an account id) or the email entered at checkout.
func (s *Service) handleCheckoutCompleted(ec *eventContext) (outcome, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(ec.event, &session, "checkout session"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(session.Customer)
	if customerID == "" {
		return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	res, err := ec.resolve(customerID, email)
	if err != nil {
		return outcome{}, err
	}
	if res != nil {
		return s.linkCustomer(ec, res, customerID)
	}

	accountID, parseErr := uuid.Parse(session.ClientReferenceID)
	if parseErr != nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account, err := ec.accounts.FindByID(ec.ctx, accountID)
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account by id")
	}
	if account == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	return s.linkCustomer(ec, &accounts.Resolution{Account: account}, customerID)
}

func (s *Service) linkCustomer(ec *eventContext, res *accounts.Resolution, customerID string) (outcome, error) {
	account := res.Account
	if !res.NeedsCustomerLink(customerID) {
		return outcomeFor(enums.WebhookEventOutcomeNoop, account), nil
	}
	if err := ec.update(account, accounts.NewPatch().LinkCustomer(customerID)); err != nil {
		return outcome{}, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithAccountID(ec.ctx, account.ID.String()), map[string]any{
		"customer_id": customerID,
	}), "stripe customer linked to account")
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}
