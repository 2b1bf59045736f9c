package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks inbound webhook processing.
type WebhookMetrics struct {
	events        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rejected      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events by type and processing result.",
	}, []string{"provider", "event_type", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "processing_duration_seconds",
		Help:      "Time spent processing a verified webhook event.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "category"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "rejected_total",
		Help:      "Webhook requests rejected before dispatch.",
	}, []string{"provider", "reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "notifications_total",
		Help:      "Outward notifications dispatched after webhook commits.",
	}, []string{"type", "result"})
	reg.MustRegister(events, duration, rejected, notifications)
	return &WebhookMetrics{
		events:        events,
		duration:      duration,
		rejected:      rejected,
		notifications: notifications,
	}
}

// IncEvent counts one processed event with its result (applied, duplicate, ignored, failed...).
func (w *WebhookMetrics) IncEvent(provider, eventType, result string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(provider), normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// ObserveDuration records how long processing took for the category.
func (w *WebhookMetrics) ObserveDuration(provider, category string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(provider), normalizeLabel(category)).Observe(duration.Seconds())
}

// IncRejected counts a request rejected before dispatch.
func (w *WebhookMetrics) IncRejected(provider, reason string) {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.WithLabelValues(normalizeLabel(provider), normalizeLabel(reason)).Inc()
}

// IncNotification counts a notification dispatch attempt.
func (w *WebhookMetrics) IncNotification(kind, result string) {
	if w == nil || w.notifications == nil {
		return
	}
	w.notifications.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}
