package stripewebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
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
	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
)

const (
	defaultProcessingTimeout  = 10 * time.Second
	defaultMaxConflictRetries = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Disposition is what the endpoint reports back for a verified event.
type Disposition string

const (
	DispositionProcessed Disposition = "processed"
	DispositionDuplicate Disposition = "duplicate"
	DispositionIgnored   Disposition = "ignored"
)

// Result describes a successfully acknowledged event.
type Result struct {
	EventID     string
	EventType   string
	Disposition Disposition
	Outcome     enums.WebhookEventOutcome
	ProcessedAt time.Time
}

type ServiceParams struct {
	Accounts          accounts.Repository
	Events            events.Repository
	Resolver          *accounts.Resolver
	Plans             *plans.Catalog
	TransactionRunner txRunner
	Notifier          notifications.Dispatcher
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
	Config            config.WebhooksConfig
	Clock             func() time.Time
}

// Service applies verified Stripe events to account billing state.
type Service struct {
	accounts             accounts.Repository
	events               events.Repository
	resolver             *accounts.Resolver
	plans                *plans.Catalog
	txRunner             txRunner
	notifier             notifications.Dispatcher
	metrics              *metrics.WebhookMetrics
	logg                 *logger.Logger
	timeout              time.Duration
	maxAttempts          int
	recordPaymentIntents bool
	now                  func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook events repo required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer resolver required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}

	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.NewLogDispatcher(logg, params.Metrics)
	}
	timeout := params.Config.ProcessingTimeout
	if timeout <= 0 {
		timeout = defaultProcessingTimeout
	}
	attempts := params.Config.MaxConflictRetries
	if attempts <= 0 {
		attempts = defaultMaxConflictRetries
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		accounts:             params.Accounts,
		events:               params.Events,
		resolver:             params.Resolver,
		plans:                params.Plans,
		txRunner:             params.TransactionRunner,
		notifier:             notifier,
		metrics:              params.Metrics,
		logg:                 logg,
		timeout:              timeout,
		maxAttempts:          attempts,
		recordPaymentIntents: params.Config.RecordPaymentIntents,
		now:                  clock,
	}, nil
}

// Process runs the handler routed for event inside one transaction together with the
// processed-event record. Unrouted types are acknowledged without touching the store.
func (s *Service) Process(ctx context.Context, event *stripe.Event, payload []byte) (*Result, error) {
	if event == nil || event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithEvent(ctx, event.ID, eventType)

	route, ok := Lookup(event.Type)
	if !ok {
		s.logg.Info(s.logg.WithFields(ctx, unhandledPayloadFields(payload, event)), "stripe event type not handled")
		s.metrics.IncEvent(provider, eventType, string(DispositionIgnored))
		return &Result{
			EventID:     event.ID,
			EventType:   eventType,
			Disposition: DispositionIgnored,
			ProcessedAt: s.now().UTC(),
		}, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe event data required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	var (
		result *Result
		notes  []notifications.Notification
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, notes, err = s.processOnce(ctx, event, payload, route)
		if err == nil || !errors.Is(err, accounts.ErrVersionConflict) || attempt >= s.maxAttempts {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "account changed concurrently, retrying event")
	}
	s.metrics.ObserveDuration(provider, string(route.Category), s.now().Sub(start))

	if err != nil {
		s.metrics.IncEvent(provider, eventType, "failed")
		if errors.Is(err, accounts.ErrVersionConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "account update kept conflicting")
		}
		return nil, err
	}

	for _, n := range notes {
		s.notifier.Dispatch(ctx, n)
	}

	label := string(result.Disposition)
	if result.Disposition == DispositionProcessed {
		label = result.Outcome.String()
	}
	s.metrics.IncEvent(provider, eventType, label)
	s.logg.Info(s.logg.WithField(ctx, "result", label), "stripe event processed")
	return result, nil
}

func (s *Service) processOnce(ctx context.Context, event *stripe.Event, payload []byte, route Route) (*Result, []notifications.Notification, error) {
	var (
		result *Result
		notes  []notifications.Notification
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()
		eventRepo := s.events.WithTx(tx)
		inserted, err := eventRepo.Insert(ctx, &models.WebhookEvent{
			ID:             event.ID,
			Type:           string(event.Type),
			Livemode:       event.Livemode,
			PayloadHash:    payloadHash(payload, event),
			EventCreatedAt: epochToUTC(event.Created),
			ReceivedAt:     now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		if !inserted {
			s.logg.Info(ctx, "stripe event already processed")
			result = &Result{
				EventID:     event.ID,
				EventType:   string(event.Type),
				Disposition: DispositionDuplicate,
				ProcessedAt: now,
			}
			return nil
		}

		repo := s.accounts.WithTx(tx)
		ec := &eventContext{
			ctx:      ctx,
			event:    event,
			at:       epochToUTC(event.Created),
			accounts: repo,
			resolver: s.resolver.WithRepository(repo),
		}
		out, err := route.handle(s, ec)
		if err != nil {
			return err
		}

		if err := eventRepo.MarkOutcome(ctx, event.ID, out.status, out.accountID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook event outcome")
		}
		result = &Result{
			EventID:     event.ID,
			EventType:   string(event.Type),
			Disposition: DispositionProcessed,
			Outcome:     out.status,
			ProcessedAt: now,
		}
		notes = ec.notes
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, notes, nil
}

// maxLoggedPayload bounds the payload excerpt logged for unrouted event types.
const maxLoggedPayload = 2048

func unhandledPayloadFields(payload []byte, event *stripe.Event) map[string]any {
	raw := payload
	if len(raw) == 0 && event.Data != nil {
		raw = event.Data.Raw
	}
	excerpt := raw
	if len(excerpt) > maxLoggedPayload {
		excerpt = excerpt[:maxLoggedPayload]
	}
	return map[string]any{
		"payload_sha256":    payloadHash(payload, event),
		"payload_bytes":     len(raw),
		"payload_excerpt":   string(excerpt),
		"payload_truncated": len(raw) > maxLoggedPayload,
	}
}

func payloadHash(payload []byte, event *stripe.Event) string {
	if len(payload) == 0 && event.Data != nil {
		payload = event.Data.Raw
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type outcome struct {
	status    enums.WebhookEventOutcome
	accountID *uuid.UUID
}

func outcomeFor(status enums.WebhookEventOutcome, account *models.Account) outcome {
	out := outcome{status: status}
	if account != nil {
		id := account.ID
		out.accountID = &id
	}
	return out
}

// eventContext carries the transaction-bound stores for one event.
type eventContext struct {
	ctx      context.Context
	event    *stripe.Event
	at       time.Time
	accounts accounts.Repository
	resolver *accounts.Resolver
	notes    []notifications.Notification
}

// resolve locates the account for a customer. A miss is reported as (nil, nil).
func (ec *eventContext) resolve(customerID, email string) (*accounts.Resolution, error) {
	res, err := ec.resolver.Resolve(ec.ctx, customerID, email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// update writes patch at the account's loaded version.
func (ec *eventContext) update(account *models.Account, patch *accounts.Patch) error {
	if patch.Empty() {
		return nil
	}
	err := ec.accounts.Update(ec.ctx, account.ID, patch, account.Version)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, accounts.ErrVersionConflict):
		return err
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, accounts.ErrVersionConflict, "customer linked by a concurrent event")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account billing")
	}
}

func (ec *eventContext) notify(kind enums.NotificationType, account *models.Account, customerID, objectID, reason string) {
	n := notifications.Notification{
		Type:       kind,
		EventID:    ec.event.ID,
		EventType:  string(ec.event.Type),
		CustomerID: customerID,
		ObjectID:   objectID,
		Reason:     reason,
		OccurredAt: ec.at,
	}
	if account != nil {
		id := account.ID
		n.AccountID = &id
	}
	ec.notes = append(ec.notes, n)
}

func (s *Service) accountNotFound(ec *eventContext, customerID string) outcome {
	s.logg.Warn(s.logg.WithField(ec.ctx, "customer_id", customerID), "no account for stripe customer, acknowledging")
	return outcomeFor(enums.WebhookEventOutcomeAccountNotFound, nil)
}

func (s *Service) handleAcknowledgeOnly(ec *eventContext) (outcome, error) {
	s.logg.Debug(ec.ctx, "stripe event acknowledged without changes")
	return outcomeFor(enums.WebhookEventOutcomeNoop, nil), nil
}
