package stripewebhook

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/releasehub-billing/internal/accounts"
	"github.com/angelmondragon/releasehub-billing/internal/notifications"
	"github.com/angelmondragon/releasehub-billing/internal/plans"
	"github.com/angelmondragon/releasehub-billing/internal/webhooks/events"
	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/db"
	"github.com/angelmondragon/releasehub-billing/pkg/db/dbtest"
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
)

const (
	priceArtistProMonthly = "price_artist_pro_monthly"
	priceArtistProYearly  = "price_artist_pro_yearly"
	priceLabelProMonthly  = "price_label_pro_monthly"
)

type fixture struct {
	t        *testing.T
	conn     *gorm.DB
	svc      *Service
	accounts accounts.Repository
	events   events.Repository
	notes    *notifications.Recorder
}

type fixtureOption func(*ServiceParams)

func withEmailLookup(lookup accounts.EmailLookup) fixtureOption {
	return func(p *ServiceParams) {
		p.Resolver = accounts.NewResolver(p.Accounts, lookup, nil)
	}
}

func withAccounts(wrap func(accounts.Repository) accounts.Repository) fixtureOption {
	return func(p *ServiceParams) {
		p.Accounts = wrap(p.Accounts)
		p.Resolver = accounts.NewResolver(p.Accounts, nil, nil)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	accountRepo := accounts.NewRepository(conn)
	eventRepo := events.NewRepository(conn)
	recorder := &notifications.Recorder{}

	params := ServiceParams{
		Accounts:          accountRepo,
		Events:            eventRepo,
		Resolver:          accounts.NewResolver(accountRepo, nil, nil),
		Plans:             testCatalog(t),
		TransactionRunner: db.NewFromConn(conn),
		Notifier:          recorder,
		Config: config.WebhooksConfig{
			ProcessingTimeout:    5 * time.Second,
			MaxConflictRetries:   3,
			RecordPaymentIntents: true,
		},
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return &fixture{t: t, conn: conn, svc: svc, accounts: accountRepo, events: eventRepo, notes: recorder}
}

func testCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	catalog, err := plans.NewCatalog([]plans.Entry{
		{PriceID: priceArtistProMonthly, PlanType: "artist_pro", Role: enums.AccountRoleArtist},
		{PriceID: priceArtistProYearly, PlanType: "artist_pro", Role: enums.AccountRoleArtist},
		{PriceID: priceLabelProMonthly, PlanType: "label_pro", Role: enums.AccountRoleLabel},
	}, map[string]string{"artist": "artist_starter", "label": "label_starter"}, "artist")
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return catalog
}

func (f *fixture) seedAccount(email string, mutate func(*models.Account)) *models.Account {
	f.t.Helper()
	account := &models.Account{
		ID:                 uuid.New(),
		Email:              email,
		Role:               enums.AccountRoleArtist,
		SubscriptionStatus: enums.SubscriptionStatusNone,
		Version:            1,
	}
	if mutate != nil {
		mutate(account)
	}
	if err := f.conn.Create(account).Error; err != nil {
		f.t.Fatalf("seed account: %v", err)
	}
	return account
}

func (f *fixture) reload(id uuid.UUID) *models.Account {
	f.t.Helper()
	account, err := f.accounts.FindByID(context.Background(), id)
	if err != nil || account == nil {
		f.t.Fatalf("reload account %s: %v", id, err)
	}
	return account
}

func (f *fixture) history(id uuid.UUID) []models.PaymentRecord {
	f.t.Helper()
	records, err := f.accounts.ListPaymentRecords(context.Background(), id)
	if err != nil {
		f.t.Fatalf("list payment records: %v", err)
	}
	return records
}

func (f *fixture) process(event *stripe.Event) *Result {
	f.t.Helper()
	result, err := f.svc.Process(context.Background(), event, nil)
	if err != nil {
		f.t.Fatalf("process %s (%s): %v", event.ID, event.Type, err)
	}
	return result
}

func strPtr(v string) *string { return &v }

// buildEvent encodes obj as the event's data object and decodes the whole event back,
// so the event looks exactly like one read off the wire.
func buildEvent(t *testing.T, id string, eventType stripe.EventType, created int64, obj any, previous map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	payload, err := json.Marshal(&stripe.Event{
		ID:         id,
		Object:     "event",
		Type:       eventType,
		Created:    created,
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw:                raw,
			PreviousAttributes: previous,
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return &event
}

func subscription(id, customerID, priceID string, status stripe.SubscriptionStatus, interval stripe.PriceRecurringInterval) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Object:   "subscription",
		Customer: &stripe.Customer{ID: customerID},
		Status:   status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				ID:                 "si_" + id,
				CurrentPeriodStart: 1767225600,
				CurrentPeriodEnd:   1769904000,
				Price: &stripe.Price{
					ID:        priceID,
					Recurring: &stripe.PriceRecurring{Interval: interval},
				},
			}},
		},
	}
}

func invoice(id, customerID string, amountPaid int64, currency stripe.Currency) *stripe.Invoice {
	return &stripe.Invoice{
		ID:         id,
		Object:     "invoice",
		Customer:   &stripe.Customer{ID: customerID},
		AmountPaid: amountPaid,
		Currency:   currency,
	}
}

type stubEmails struct {
	emails map[string]string
	calls  int
}

func (s *stubEmails) CustomerEmail(_ context.Context, customerID string) (string, error) {
	s.calls++
	return s.emails[customerID], nil
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	accounts.Repository
	mu        *sync.Mutex
	remaining *int
	updates   *int
}

func newConflictingRepo(inner accounts.Repository, failures int) *conflictingRepo {
	remaining, updates := failures, 0
	return &conflictingRepo{Repository: inner, mu: &sync.Mutex{}, remaining: &remaining, updates: &updates}
}

func (c *conflictingRepo) WithTx(tx *gorm.DB) accounts.Repository {
	return &conflictingRepo{Repository: c.Repository.WithTx(tx), mu: c.mu, remaining: c.remaining, updates: c.updates}
}

func (c *conflictingRepo) Update(ctx context.Context, id uuid.UUID, patch *accounts.Patch, expectedVersion int64) error {
	c.mu.Lock()
	*c.updates++
	fail := *c.remaining > 0
	if fail {
		*c.remaining--
	}
	c.mu.Unlock()
	if fail {
		return accounts.ErrVersionConflict
	}
	return c.Repository.Update(ctx, id, patch, expectedVersion)
}
