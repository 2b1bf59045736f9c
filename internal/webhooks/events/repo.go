package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

// Repository stores the processed-event record that makes webhook delivery idempotent.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.WebhookEvent) (bool, error)
	MarkOutcome(ctx context.Context, id string, outcome enums.WebhookEventOutcome, accountID *uuid.UUID, processedAt time.Time) error
	FindByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert records event unless its id was stored before. It reports whether the row is new.
func (r *repository) Insert(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkOutcome(ctx context.Context, id string, outcome enums.WebhookEventOutcome, accountID *uuid.UUID, processedAt time.Time) error {
	fields := map[string]any{
		"outcome":      outcome,
		"processed_at": processedAt.UTC(),
	}
	if accountID != nil {
		fields["account_id"] = *accountID
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	if id == "" {
		return nil, nil
	}
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// DeleteProcessedBefore removes up to limit processed records older than cutoff.
// Unprocessed rows are never removed.
func (r *repository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	sub := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Select("id").
		Where("processed_at IS NOT NULL AND processed_at < ?", cutoff.UTC()).
		Order("processed_at ASC").
		Limit(limit)

	res := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Delete(&models.WebhookEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
