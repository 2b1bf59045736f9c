package enums

// NotificationType identifies the outward alert dispatched after a webhook commits.
type NotificationType string

const (
	NotificationTypeTrialWillEnd   NotificationType = "trial_will_end"
	NotificationTypePaymentFailed  NotificationType = "payment_failed"
	NotificationTypeDisputeCreated NotificationType = "dispute_created"
	NotificationTypeDisputeClosed  NotificationType = "dispute_closed"
	NotificationTypeFraudWarning   NotificationType = "fraud_warning"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// RequiresReview reports whether the alert needs a human before any account change.
func (n NotificationType) RequiresReview() bool {
	switch n {
	case NotificationTypeDisputeCreated, NotificationTypeDisputeClosed, NotificationTypeFraudWarning:
		return true
	}
	return false
}
