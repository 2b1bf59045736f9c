package accounts

import (
	"sort"
	"time"

	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// Patch collects the billing fields a webhook changes on an account.
// Only touched columns are written, so fields owned by other mutators are never clobbered.
type Patch struct {
	fields map[string]any
	apply  []func(*models.Account)
}

func NewPatch() *Patch {
	return &Patch{fields: map[string]any{}}
}

func (p *Patch) set(column string, value any, fn func(*models.Account)) *Patch {
	p.fields[column] = value
	p.apply = append(p.apply, fn)
	return p
}

func (p *Patch) LinkCustomer(customerID string) *Patch {
	return p.set("stripe_customer_id", customerID, func(a *models.Account) { a.StripeCustomerID = &customerID })
}

func (p *Patch) SubscriptionID(id string) *Patch {
	return p.set("subscription_id", id, func(a *models.Account) { a.SubscriptionID = &id })
}

func (p *Patch) ClearSubscriptionID() *Patch {
	return p.set("subscription_id", nil, func(a *models.Account) { a.SubscriptionID = nil })
}

func (p *Patch) CanceledSubscriptionID(id string) *Patch {
	return p.set("canceled_subscription_id", id, func(a *models.Account) { a.CanceledSubscriptionID = &id })
}

func (p *Patch) Status(status enums.SubscriptionStatus) *Patch {
	return p.set("subscription_status", status, func(a *models.Account) { a.SubscriptionStatus = status })
}

func (p *Patch) PlanType(plan string) *Patch {
	return p.set("plan_type", plan, func(a *models.Account) { a.PlanType = &plan })
}

func (p *Patch) BillingCycle(cycle enums.BillingCycle) *Patch {
	return p.set("billing_cycle", cycle, func(a *models.Account) { a.BillingCycle = &cycle })
}

func (p *Patch) CurrentPeriod(start, end time.Time) *Patch {
	p.set("current_period_start", start, func(a *models.Account) { a.CurrentPeriodStart = &start })
	return p.set("current_period_end", end, func(a *models.Account) { a.CurrentPeriodEnd = &end })
}

// TrialEnd sets the trial end, or clears it when end is nil.
func (p *Patch) TrialEnd(end *time.Time) *Patch {
	if end == nil {
		return p.set("trial_end", nil, func(a *models.Account) { a.TrialEnd = nil })
	}
	v := *end
	return p.set("trial_end", v, func(a *models.Account) { a.TrialEnd = &v })
}

func (p *Patch) PaymentMethodConnected(connected bool) *Patch {
	return p.set("payment_method_connected", connected, func(a *models.Account) { a.PaymentMethodConnected = connected })
}

func (p *Patch) LastFailedPaymentAt(at time.Time) *Patch {
	return p.set("last_failed_payment_at", at, func(a *models.Account) { a.LastFailedPaymentAt = &at })
}

func (p *Patch) LastSubscriptionEventAt(at time.Time) *Patch {
	return p.set("last_subscription_event_at", at, func(a *models.Account) { a.LastSubscriptionEventAt = &at })
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return p == nil || len(p.fields) == 0
}

// Fields returns a copy of the column → value map.
func (p *Patch) Fields() map[string]any {
	out := make(map[string]any, len(p.fields)+2)
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// Columns lists the touched columns, for logging.
func (p *Patch) Columns() []string {
	cols := make([]string, 0, len(p.fields))
	for k := range p.fields {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// ApplyTo mirrors the patch onto an in-memory account.
func (p *Patch) ApplyTo(a *models.Account) {
	if p == nil || a == nil {
		return
	}
	for _, fn := range p.apply {
		fn(a)
	}
}
