package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/db"
	"github.com/angelmondragon/releasehub-billing/pkg/db/dbtest"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

func newEvent(id string) *models.WebhookEvent {
	now := time.Now().UTC()
	return &models.WebhookEvent{
		ID:             id,
		Type:           "invoice.paid",
		PayloadHash:    "hash",
		EventCreatedAt: now,
		ReceivedAt:     now,
	}
}

func countEvents(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.WebhookEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(newEvent("evt_committed")).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}
	if got := countEvents(t, conn); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(newEvent("evt_rolled")).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if got := countEvents(t, conn); got != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", got)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(newEvent("evt_panic")).Error; err != nil {
				return err
			}
			panic("handler bug")
		})
	}()

	if got := countEvents(t, conn); got != 0 {
		t.Fatalf("expected panic rollback, got %d records", got)
	}
}

func TestDuplicateEventIsUniqueViolation(t *testing.T) {
	conn := dbtest.Open(t)
	if err := conn.Create(newEvent("evt_dup")).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := conn.Create(newEvent("evt_dup")).Error
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := db.New(context.Background(), config.DBConfig{}, logger.Nop()); err == nil {
		t.Fatal("expected missing DSN error")
	}
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:client_test?mode=memory&cache=shared",
	}, logger.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
