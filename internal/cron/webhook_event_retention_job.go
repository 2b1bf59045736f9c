package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

const (
	webhookEventRetentionDays = 30
	webhookEventDeleteBatch   = 500
	// Stripe keeps redelivering an event for up to three days, so a record must outlive that window.
	minWebhookEventRetentionDays = 3
)

type WebhookEventRetentionJobParams struct {
	Logger        *logger.Logger
	Repository    webhookEventPurger
	RetentionDays int
	BatchSize     int
}

type webhookEventPurger interface {
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewWebhookEventRetentionJob builds the job that prunes processed webhook event records.
func NewWebhookEventRetentionJob(params WebhookEventRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("webhook event repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = webhookEventRetentionDays
	}
	if retention < minWebhookEventRetentionDays {
		return nil, fmt.Errorf("webhook event retention must be at least %d days, got %d", minWebhookEventRetentionDays, retention)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = webhookEventDeleteBatch
	}
	return &webhookEventRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type webhookEventRetentionJob struct {
	logg      *logger.Logger
	repo      webhookEventPurger
	retention int
	batch     int
	now       func() time.Time
}

func (j *webhookEventRetentionJob) Name() string { return "webhook-event-retention" }

// Run deletes in batches so a large backlog never holds one long transaction.
func (j *webhookEventRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := j.repo.DeleteProcessedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("webhook event retention: %w", err)
		}
		deleted += rows
		if rows < int64(j.batch) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "webhook event retention cleanup complete")
	return nil
}
