package enums

// WebhookEventOutcome records what processing did with a stored event.
type WebhookEventOutcome string

const (
	WebhookEventOutcomeApplied         WebhookEventOutcome = "applied"
	WebhookEventOutcomeNoop            WebhookEventOutcome = "noop"
	WebhookEventOutcomeStale           WebhookEventOutcome = "stale"
	WebhookEventOutcomeSuperseded      WebhookEventOutcome = "superseded"
	WebhookEventOutcomeAccountNotFound WebhookEventOutcome = "account_not_found"
)

// String implements fmt.Stringer.
func (o WebhookEventOutcome) String() string {
	return string(o)
}

// Skipped reports whether the event was stored without touching the account.
func (o WebhookEventOutcome) Skipped() bool {
	return o != WebhookEventOutcomeApplied
}
