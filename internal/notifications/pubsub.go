package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
)

const defaultPublishTimeout = 5 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubDispatcher publishes notifications as JSON messages on a Pub/Sub topic.
type PubSubDispatcher struct {
	pub     publisher
	timeout time.Duration
	logg    *logger.Logger
	metrics *metrics.WebhookMetrics
}

// NewPubSubDispatcher wraps a topic publisher. A non-positive timeout falls back to 5s.
func NewPubSubDispatcher(p *gcppubsub.Publisher, timeout time.Duration, logg *logger.Logger, m *metrics.WebhookMetrics) (*PubSubDispatcher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return newPubSubDispatcher(&gcpPublisher{Publisher: p}, timeout, logg, m), nil
}

func newPubSubDispatcher(pub publisher, timeout time.Duration, logg *logger.Logger, m *metrics.WebhookMetrics) *PubSubDispatcher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubDispatcher{pub: pub, timeout: timeout, logg: logg, metrics: m}
}

// Dispatch hands the message to the publisher and waits for the result in the background.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, n Notification) {
	ctx = d.logg.WithFields(ctx, n.fields())

	payload, err := json.Marshal(n)
	if err != nil {
		d.logg.Error(ctx, "encode notification failed", err)
		d.metrics.IncNotification(n.Type.String(), "failed")
		return
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"notification_type": n.Type.String(),
			"event_id":          n.EventID,
			"event_type":        n.EventType,
			"occurred_at":       n.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	result := d.pub.Publish(publishCtx, msg)
	if result == nil {
		cancel()
		d.logg.Error(ctx, "publish notification failed", errors.New("publisher returned nil result"))
		d.metrics.IncNotification(n.Type.String(), "failed")
		return
	}

	go func() {
		defer cancel()
		if _, err := result.Get(publishCtx); err != nil {
			d.logg.Error(ctx, "publish notification failed", err)
			d.metrics.IncNotification(n.Type.String(), "failed")
			return
		}
		d.logg.Debug(ctx, "notification published")
		d.metrics.IncNotification(n.Type.String(), "published")
	}()
}

// Close flushes pending messages and stops the publisher's background workers.
func (d *PubSubDispatcher) Close() error {
	d.pub.Stop()
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

