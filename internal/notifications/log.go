package notifications

import (
	"context"

	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
)

// LogDispatcher writes notifications to the structured log. It is used when no topic is configured.
type LogDispatcher struct {
	logg    *logger.Logger
	metrics *metrics.WebhookMetrics
}

func NewLogDispatcher(logg *logger.Logger, m *metrics.WebhookMetrics) *LogDispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogDispatcher{logg: logg, metrics: m}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n Notification) {
	ctx = d.logg.WithFields(ctx, n.fields())
	if n.Type.RequiresReview() {
		d.logg.Warn(ctx, "billing alert requires review")
	} else {
		d.logg.Info(ctx, "billing notification")
	}
	d.metrics.IncNotification(n.Type.String(), "logged")
}
