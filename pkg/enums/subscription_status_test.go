package enums

import "testing"

func TestSubscriptionStatusFromProvider(t *testing.T) {
	cases := map[string]SubscriptionStatus{
		"trialing":           SubscriptionStatusTrialing,
		"active":             SubscriptionStatusActive,
		"past_due":           SubscriptionStatusPastDue,
		"paused":             SubscriptionStatusPaused,
		"canceled":           SubscriptionStatusCanceled,
		"unpaid":             SubscriptionStatusPastDue,
		"incomplete":         SubscriptionStatusPastDue,
		"incomplete_expired": SubscriptionStatusCanceled,
	}
	for raw, want := range cases {
		got, err := SubscriptionStatusFromProvider(raw)
		if err != nil {
			t.Fatalf("status %q: unexpected error %v", raw, err)
		}
		if got != want {
			t.Fatalf("status %q: expected %s got %s", raw, want, got)
		}
	}

	for _, raw := range []string{"", "no_subscription", "bogus"} {
		if _, err := SubscriptionStatusFromProvider(raw); err == nil {
			t.Fatalf("status %q: expected error", raw)
		}
	}
}

func TestAfterPaymentSucceeded(t *testing.T) {
	tests := []struct {
		from     SubscriptionStatus
		positive bool
		want     SubscriptionStatus
		changed  bool
	}{
		{SubscriptionStatusPastDue, true, SubscriptionStatusActive, true},
		{SubscriptionStatusActive, true, SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, true, SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, false, SubscriptionStatusTrialing, false},
		{SubscriptionStatusCanceled, true, SubscriptionStatusCanceled, false},
		{SubscriptionStatusPaused, true, SubscriptionStatusPaused, false},
		{SubscriptionStatusNone, true, SubscriptionStatusNone, false},
	}
	for _, tt := range tests {
		got, changed := tt.from.AfterPaymentSucceeded(tt.positive)
		if got != tt.want || changed != tt.changed {
			t.Fatalf("from %s (positive=%v): expected (%s,%v) got (%s,%v)", tt.from, tt.positive, tt.want, tt.changed, got, changed)
		}
	}
}

func TestAfterPaymentFailed(t *testing.T) {
	for _, from := range []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue} {
		got, changed := from.AfterPaymentFailed()
		if got != SubscriptionStatusPastDue || !changed {
			t.Fatalf("from %s: expected past_due, got %s", from, got)
		}
	}
	for _, from := range []SubscriptionStatus{SubscriptionStatusCanceled, SubscriptionStatusPaused, SubscriptionStatusNone} {
		got, changed := from.AfterPaymentFailed()
		if got != from || changed {
			t.Fatalf("from %s: expected unchanged, got %s", from, got)
		}
	}
}

func TestBillingCycleFromInterval(t *testing.T) {
	if got, _ := BillingCycleFromInterval("month"); got != BillingCycleMonthly {
		t.Fatalf("expected monthly, got %s", got)
	}
	if got, _ := BillingCycleFromInterval("year"); got != BillingCycleYearly {
		t.Fatalf("expected yearly, got %s", got)
	}
	if _, err := BillingCycleFromInterval("week"); err == nil {
		t.Fatal("expected error for weekly interval")
	}
}
