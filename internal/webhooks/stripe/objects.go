package stripewebhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

// zeroDecimalCurrencies are charged in whole units; amounts are not divided by 100.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

func decodeObject(event *stripe.Event, into any, kind string) error {
	if err := json.Unmarshal(event.Data.Raw, into); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode "+kind+" event")
	}
	return nil
}

func determinePriceID(sub *stripe.Subscription) string {
	if item := firstItem(sub); item != nil && item.Price != nil {
		return item.Price.ID
	}
	return ""
}

func firstItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func billingCycleOf(sub *stripe.Subscription) (enums.BillingCycle, bool) {
	item := firstItem(sub)
	if item == nil || item.Price == nil || item.Price.Recurring == nil {
		return "", false
	}
	cycle, err := enums.BillingCycleFromInterval(string(item.Price.Recurring.Interval))
	if err != nil {
		return "", false
	}
	return cycle, true
}

// periodOf reads the billing period from the first item, where current API versions carry it.
func periodOf(sub *stripe.Subscription) (time.Time, time.Time, bool) {
	item := firstItem(sub)
	if item == nil || item.CurrentPeriodStart == 0 || item.CurrentPeriodEnd == 0 {
		return time.Time{}, time.Time{}, false
	}
	return epochToUTC(item.CurrentPeriodStart), epochToUTC(item.CurrentPeriodEnd), true
}

func epochToUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func epochPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := epochToUTC(sec)
	return &t
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// majorUnits converts a minor-unit amount to the currency's major unit.
func majorUnits(amount int64, currency stripe.Currency) decimal.Decimal {
	value := decimal.NewFromInt(amount)
	if _, ok := zeroDecimalCurrencies[strings.ToLower(string(currency))]; ok {
		return value
	}
	return value.Shift(-2)
}

func invoicePaidAt(inv *stripe.Invoice, fallback time.Time) time.Time {
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		return epochToUTC(inv.StatusTransitions.PaidAt)
	}
	return fallback
}

// invoiceSubscriptionID reads the subscription from either the current parent layout or the legacy top-level field.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("parent", "subscription_details", "subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("subscription")
}

func laterOf(prev *time.Time, at time.Time) time.Time {
	if prev != nil && prev.After(at) {
		return prev.UTC()
	}
	return at
}
