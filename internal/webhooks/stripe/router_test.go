package stripewebhook

import (
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestRouterRegistersExpectedTypes(t *testing.T) {
	types := RegisteredTypes()
	if len(types) < 20 {
		t.Fatalf("expected at least 20 routed event types, got %d", len(types))
	}

	want := map[stripe.EventType]Category{
		stripe.EventTypeCustomerSubscriptionDeleted:   CategorySubscription,
		stripe.EventTypeInvoicePaymentSucceeded:       CategoryInvoice,
		stripe.EventTypePaymentIntentPaymentFailed:    CategoryPaymentIntent,
		stripe.EventTypePaymentMethodDetached:         CategoryPaymentMethod,
		stripe.EventTypeCustomerUpdated:               CategoryCustomer,
		stripe.EventTypeCheckoutSessionCompleted:      CategoryCheckout,
		stripe.EventTypeRadarEarlyFraudWarningCreated: CategoryDispute,
	}
	for eventType, category := range want {
		route, ok := Lookup(eventType)
		if !ok {
			t.Fatalf("%s not routed", eventType)
		}
		if route.Category != category {
			t.Fatalf("%s: expected category %s, got %s", eventType, category, route.Category)
		}
		if route.handle == nil {
			t.Fatalf("%s has no handler", eventType)
		}
	}

	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("registered types not sorted at %d", i)
		}
	}
}

func TestRouterUnknownType(t *testing.T) {
	if _, ok := Lookup("account.application.authorized"); ok {
		t.Fatal("expected unknown type to be unrouted")
	}
}
