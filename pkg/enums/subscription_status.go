package enums

import "fmt"

// SubscriptionStatus is the account-level subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "no_subscription"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusNone,
	SubscriptionStatusTrialing,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusPaused,
	SubscriptionStatusCanceled,
}

// processor statuses that have no account-level equivalent of the same name.
var providerStatusAliases = map[string]SubscriptionStatus{
	"unpaid":             SubscriptionStatusPastDue,
	"incomplete":         SubscriptionStatusPastDue,
	"incomplete_expired": SubscriptionStatusCanceled,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsEntitled reports whether the status grants access to the paid plan.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// IsTerminal reports whether no further transitions leave the status.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled
}

// AfterPaymentSucceeded returns the status that follows a paid invoice.
// Trialing accounts only activate when money actually moved.
func (s SubscriptionStatus) AfterPaymentSucceeded(amountPositive bool) (SubscriptionStatus, bool) {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue:
		return SubscriptionStatusActive, true
	case SubscriptionStatusTrialing:
		if amountPositive {
			return SubscriptionStatusActive, true
		}
	}
	return s, false
}

// AfterPaymentFailed returns the status that follows a failed invoice payment.
func (s SubscriptionStatus) AfterPaymentFailed() (SubscriptionStatus, bool) {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return SubscriptionStatusPastDue, true
	}
	return s, false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}

// SubscriptionStatusFromProvider maps a Stripe subscription status onto the account status.
func SubscriptionStatusFromProvider(value string) (SubscriptionStatus, error) {
	if alias, ok := providerStatusAliases[value]; ok {
		return alias, nil
	}
	status, err := ParseSubscriptionStatus(value)
	if err != nil || status == SubscriptionStatusNone {
		return "", fmt.Errorf("unsupported provider subscription status %q", value)
	}
	return status, nil
}
