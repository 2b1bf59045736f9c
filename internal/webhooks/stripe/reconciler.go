package stripewebhook

import (
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/internal/accounts"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

// orderingOutcome decides whether a subscription event observed at `at` may still change the account.
//
//  1. a non-deletion for the subscription already seen as canceled is superseded;
//  2. a deletion for a subscription other than the one the account holds is superseded;
//  3. a non-deletion older than the last applied subscription event is stale;
//  4. a non-deletion in the same second as the last applied event is stale when it reports an
//     earlier period end for the current subscription. Equal periods apply in arrival order.
func orderingOutcome(account *models.Account, subscriptionID string, at time.Time, periodEnd *time.Time, deletion bool) enums.WebhookEventOutcome {
	if deletion {
		if account.SubscriptionID != nil && *account.SubscriptionID != "" && !account.IsCurrentSubscription(subscriptionID) {
			return enums.WebhookEventOutcomeSuperseded
		}
		return enums.WebhookEventOutcomeApplied
	}
	if account.IsCanceledSubscription(subscriptionID) {
		return enums.WebhookEventOutcomeSuperseded
	}
	last := account.LastSubscriptionEventAt
	if last == nil {
		return enums.WebhookEventOutcomeApplied
	}
	if at.Before(*last) {
		return enums.WebhookEventOutcomeStale
	}
	if at.Equal(*last) && periodEnd != nil && account.CurrentPeriodEnd != nil &&
		account.IsCurrentSubscription(subscriptionID) && periodEnd.Before(*account.CurrentPeriodEnd) {
		return enums.WebhookEventOutcomeStale
	}
	return enums.WebhookEventOutcomeApplied
}

func (s *Service) subscriptionAccount(ec *eventContext, sub *stripe.Subscription) (*accounts.Resolution, error) {
	return ec.resolve(customerIDOf(sub.Customer), "")
}

func (s *Service) skipOutOfOrder(ec *eventContext, account *models.Account, sub *stripe.Subscription, deletion bool) (outcome, bool) {
	var periodEnd *time.Time
	if _, end, ok := periodOf(sub); ok {
		periodEnd = &end
	}
	return s.skipWith(ec, account, sub.ID, orderingOutcome(account, sub.ID, ec.at, periodEnd, deletion))
}

func (s *Service) skipWith(ec *eventContext, account *models.Account, subscriptionID string, decision enums.WebhookEventOutcome) (outcome, bool) {
	if decision == enums.WebhookEventOutcomeApplied {
		return outcome{}, false
	}
	s.logg.Info(s.logg.WithFields(ec.ctx, map[string]any{
		"account_id":      account.ID.String(),
		"subscription_id": subscriptionID,
		"decision":        decision.String(),
	}), "subscription event skipped by ordering rule")
	return outcomeFor(decision, account), true
}

func (s *Service) handleSubscriptionUpsert(ec *eventContext) (outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(ec.event, &sub, "subscription"); err != nil {
		return outcome{}, err
	}
	status, err := enums.SubscriptionStatusFromProvider(string(sub.Status))
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map subscription status").WithDetails(map[string]any{
			"subscription_id": sub.ID,
			"status":          string(sub.Status),
		})
	}
	if status.IsTerminal() {
		return s.cancelSubscription(ec, &sub)
	}
	priceID := determinePriceID(&sub)
	entry, ok := s.plans.Resolve(priceID)
	if !ok {
		return outcome{}, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription price is not in the plan mapping").WithDetails(map[string]any{
			"price_id":        priceID,
			"subscription_id": sub.ID,
		})
	}

	customerID := customerIDOf(sub.Customer)
	res, err := s.subscriptionAccount(ec, &sub)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account
	ctx := s.logg.WithAccountID(ec.ctx, account.ID.String())

	if out, skip := s.skipOutOfOrder(ec, account, &sub, false); skip {
		return out, nil
	}

	if entry.Role != account.Role {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"plan_role":    entry.Role.String(),
			"account_role": account.Role.String(),
			"plan_type":    entry.PlanType,
		}), "plan role differs from account role")
	}

	patch := accounts.NewPatch().
		SubscriptionID(sub.ID).
		Status(status).
		PlanType(entry.PlanType).
		TrialEnd(epochPtr(sub.TrialEnd)).
		LastSubscriptionEventAt(laterOf(account.LastSubscriptionEventAt, ec.at))
	if cycle, ok := billingCycleOf(&sub); ok {
		patch.BillingCycle(cycle)
	} else {
		s.logg.Warn(s.logg.WithField(ctx, "price_id", priceID), "subscription price has no supported billing interval")
	}
	if start, end, ok := periodOf(&sub); ok {
		patch.CurrentPeriod(start, end)
	}
	if res.NeedsCustomerLink(customerID) {
		patch.LinkCustomer(customerID)
	}

	if err := ec.update(account, patch); err != nil {
		return outcome{}, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID,
		"status":          status.String(),
		"plan_type":       entry.PlanType,
	}), "subscription reconciled")
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

func (s *Service) handleSubscriptionDeleted(ec *eventContext) (outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(ec.event, &sub, "subscription"); err != nil {
		return outcome{}, err
	}
	return s.cancelSubscription(ec, &sub)
}

// cancelSubscription moves the account to canceled and back to its role's starter plan.
func (s *Service) cancelSubscription(ec *eventContext, sub *stripe.Subscription) (outcome, error) {
	customerID := customerIDOf(sub.Customer)
	res, err := s.subscriptionAccount(ec, sub)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account

	if out, skip := s.skipOutOfOrder(ec, account, sub, true); skip {
		return out, nil
	}

	role := s.fallbackRole(account, sub)
	plan, ok := s.plans.DefaultPlan(role)
	if !ok {
		return outcome{}, pkgerrors.New(pkgerrors.CodeConfiguration, "no starter plan configured for role").WithDetails(map[string]any{
			"role": role.String(),
		})
	}

	patch := accounts.NewPatch().
		ClearSubscriptionID().
		CanceledSubscriptionID(sub.ID).
		Status(enums.SubscriptionStatusCanceled).
		PlanType(plan).
		LastSubscriptionEventAt(laterOf(account.LastSubscriptionEventAt, ec.at))
	if res.NeedsCustomerLink(customerID) {
		patch.LinkCustomer(customerID)
	}

	if err := ec.update(account, patch); err != nil {
		return outcome{}, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithAccountID(ec.ctx, account.ID.String()), map[string]any{
		"subscription_id": sub.ID,
		"plan_type":       plan,
	}), "subscription canceled, account moved to starter plan")
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

// fallbackRole prefers the account's own role, then the role of the canceled price, then the catalog default.
func (s *Service) fallbackRole(account *models.Account, sub *stripe.Subscription) enums.AccountRole {
	if account.Role.IsValid() {
		return account.Role
	}
	if entry, ok := s.plans.Resolve(determinePriceID(sub)); ok {
		return entry.Role
	}
	return s.plans.DefaultRole()
}

func (s *Service) handleSubscriptionPaused(ec *eventContext) (outcome, error) {
	return s.setSubscriptionStatus(ec, enums.SubscriptionStatusPaused)
}

func (s *Service) handleSubscriptionResumed(ec *eventContext) (outcome, error) {
	return s.setSubscriptionStatus(ec, enums.SubscriptionStatusActive)
}

// setSubscriptionStatus applies pause and resume to the subscription the account holds.
// Events for any other subscription are superseded. Resuming onto an account without a plan
// takes the plan from the subscription price.
func (s *Service) setSubscriptionStatus(ec *eventContext, status enums.SubscriptionStatus) (outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(ec.event, &sub, "subscription"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(sub.Customer)
	res, err := s.subscriptionAccount(ec, &sub)
	if err != nil {
		return outcome{}, err
	}
	if res == nil {
		return s.accountNotFound(ec, customerID), nil
	}
	account := res.Account

	if out, skip := s.skipOutOfOrder(ec, account, &sub, false); skip {
		return out, nil
	}
	holdsSubscription := account.SubscriptionID != nil && *account.SubscriptionID != ""
	if holdsSubscription && !account.IsCurrentSubscription(sub.ID) {
		out, _ := s.skipWith(ec, account, sub.ID, enums.WebhookEventOutcomeSuperseded)
		return out, nil
	}

	patch := accounts.NewPatch().
		Status(status).
		LastSubscriptionEventAt(laterOf(account.LastSubscriptionEventAt, ec.at))
	if !holdsSubscription {
		patch.SubscriptionID(sub.ID)
	}
	if status.IsEntitled() && (account.PlanType == nil || *account.PlanType == "") {
		priceID := determinePriceID(&sub)
		entry, ok := s.plans.Resolve(priceID)
		if !ok {
			return outcome{}, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription price is not in the plan mapping").WithDetails(map[string]any{
				"price_id":        priceID,
				"subscription_id": sub.ID,
			})
		}
		patch.PlanType(entry.PlanType)
	}
	if res.NeedsCustomerLink(customerID) {
		patch.LinkCustomer(customerID)
	}
	if err := ec.update(account, patch); err != nil {
		return outcome{}, err
	}
	return outcomeFor(enums.WebhookEventOutcomeApplied, account), nil
}

func (s *Service) handleTrialWillEnd(ec *eventContext) (outcome, error) {
	var sub stripe.Subscription
	if err := decodeObject(ec.event, &sub, "subscription"); err != nil {
		return outcome{}, err
	}
	customerID := customerIDOf(sub.Customer)
	res, err := s.subscriptionAccount(ec, &sub)
	if err != nil {
		return outcome{}, err
	}

	var account *models.Account
	status := enums.WebhookEventOutcomeAccountNotFound
	if res != nil {
		account = res.Account
		status = enums.WebhookEventOutcomeNoop
	}
	reason := ""
	if end := epochPtr(sub.TrialEnd); end != nil {
		reason = "trial ends " + end.Format(time.RFC3339)
	}
	ec.notify(enums.NotificationTypeTrialWillEnd, account, customerID, sub.ID, reason)
	return outcomeFor(status, account), nil
}
