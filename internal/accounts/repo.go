package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

// ErrVersionConflict is returned when a conditional update matched no row at the expected version.
var ErrVersionConflict = pkgerrors.New(pkgerrors.CodeConflict, "account was modified concurrently")

// Repository handles billing persistence for accounts and their payment history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, id uuid.UUID, patch *Patch, expectedVersion int64) error
	AppendPaymentRecord(ctx context.Context, record *models.PaymentRecord) (bool, error)
	ListPaymentRecords(ctx context.Context, accountID uuid.UUID) ([]models.PaymentRecord, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns an accounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, nil
	}
	return r.first(ctx, "stripe_customer_id = ?", customerID)
}

// FindByEmail matches the stored email exactly, case included.
func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if email == "" {
		return nil, nil
	}
	return r.first(ctx, "email = ?", email)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where(query, arg).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Update applies patch only when the row is still at expectedVersion, bumping the version.
func (r *repository) Update(ctx context.Context, id uuid.UUID, patch *Patch, expectedVersion int64) error {
	if patch.Empty() {
		return nil
	}
	fields := patch.Fields()
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = r.now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// AppendPaymentRecord inserts record unless the account already has one for the same invoice.
// It reports whether a row was written.
func (r *repository) AppendPaymentRecord(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "invoice_id"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListPaymentRecords(ctx context.Context, accountID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("occurred_at ASC, created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
