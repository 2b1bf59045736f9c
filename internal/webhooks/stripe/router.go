package stripewebhook

import (
	"sort"

	"github.com/stripe/stripe-go/v84"
)

// Category groups event types by the object they carry.
type Category string

const (
	CategoryCustomer      Category = "customer"
	CategorySubscription  Category = "subscription"
	CategoryInvoice       Category = "invoice"
	CategoryPaymentIntent Category = "payment_intent"
	CategoryPaymentMethod Category = "payment_method"
	CategoryCheckout      Category = "checkout"
	CategoryDispute       Category = "dispute"
)

type handleFunc func(s *Service, ec *eventContext) (outcome, error)

// Route binds an event type to its handler.
type Route struct {
	Category Category
	handle   handleFunc
}

var routes = map[stripe.EventType]Route{
	stripe.EventTypeCustomerCreated: {CategoryCustomer, (*Service).handleCustomerUpsert},
	stripe.EventTypeCustomerUpdated: {CategoryCustomer, (*Service).handleCustomerUpsert},
	stripe.EventTypeCustomerDeleted: {CategoryCustomer, (*Service).handleCustomerDeleted},

	stripe.EventTypeCustomerSubscriptionCreated:              {CategorySubscription, (*Service).handleSubscriptionUpsert},
	stripe.EventTypeCustomerSubscriptionUpdated:              {CategorySubscription, (*Service).handleSubscriptionUpsert},
	stripe.EventTypeCustomerSubscriptionPendingUpdateApplied: {CategorySubscription, (*Service).handleSubscriptionUpsert},
	stripe.EventTypeCustomerSubscriptionDeleted:              {CategorySubscription, (*Service).handleSubscriptionDeleted},
	stripe.EventTypeCustomerSubscriptionPaused:               {CategorySubscription, (*Service).handleSubscriptionPaused},
	stripe.EventTypeCustomerSubscriptionResumed:              {CategorySubscription, (*Service).handleSubscriptionResumed},
	stripe.EventTypeCustomerSubscriptionTrialWillEnd:         {CategorySubscription, (*Service).handleTrialWillEnd},
	stripe.EventTypeCustomerSubscriptionPendingUpdateExpired: {CategorySubscription, (*Service).handleAcknowledgeOnly},

	stripe.EventTypeInvoicePaymentSucceeded: {CategoryInvoice, (*Service).handleInvoicePaid},
	stripe.EventTypeInvoicePaid:             {CategoryInvoice, (*Service).handleInvoicePaid},
	stripe.EventTypeInvoicePaymentFailed:    {CategoryInvoice, (*Service).handleInvoicePaymentFailed},
	stripe.EventTypeInvoiceUpcoming:         {CategoryInvoice, (*Service).handleAcknowledgeOnly},
	stripe.EventTypeInvoiceFinalized:        {CategoryInvoice, (*Service).handleAcknowledgeOnly},

	stripe.EventTypePaymentIntentSucceeded:     {CategoryPaymentIntent, (*Service).handlePaymentIntentSucceeded},
	stripe.EventTypePaymentIntentPaymentFailed: {CategoryPaymentIntent, (*Service).handlePaymentIntentFailed},

	stripe.EventTypePaymentMethodAttached: {CategoryPaymentMethod, (*Service).handlePaymentMethodAttached},
	stripe.EventTypePaymentMethodDetached: {CategoryPaymentMethod, (*Service).handlePaymentMethodDetached},

	stripe.EventTypeCheckoutSessionCompleted: {CategoryCheckout, (*Service).handleCheckoutCompleted},

	stripe.EventTypeChargeDisputeCreated:          {CategoryDispute, (*Service).handleDisputeCreated},
	stripe.EventTypeChargeDisputeClosed:           {CategoryDispute, (*Service).handleDisputeClosed},
	stripe.EventTypeRadarEarlyFraudWarningCreated: {CategoryDispute, (*Service).handleEarlyFraudWarning},
}

// Lookup returns the route for eventType. Unregistered types report false.
func Lookup(eventType stripe.EventType) (Route, bool) {
	route, ok := routes[eventType]
	return route, ok
}

// RegisteredTypes lists every routed event type in lexical order.
func RegisteredTypes() []stripe.EventType {
	out := make([]stripe.EventType, 0, len(routes))
	for t := range routes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
