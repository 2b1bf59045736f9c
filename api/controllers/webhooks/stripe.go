package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/api/responses"
	stripewebhook "github.com/angelmondragon/releasehub-billing/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	defaultMaxBodyBytes   = 1 << 20
)

type stripeVerifier interface {
	Verify(ctx context.Context, payload []byte, header string) (*stripe.Event, error)
}

type StripeWebhookService interface {
	Process(ctx context.Context, event *stripe.Event, payload []byte) (*stripewebhook.Result, error)
}

type inFlightGuard interface {
	Acquire(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// StripeWebhook verifies, dispatches and acknowledges Stripe events.
// Exactly one response is written per request, including when processing panics.
func StripeWebhook(verifier stripeVerifier, svc StripeWebhookService, guard inFlightGuard, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if verifier == nil || svc == nil {
			responses.WriteWebhookError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "webhook endpoint not configured"), "", "")
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit))
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
			}
			responses.WriteWebhookError(ctx, logg, w, err, "", "")
			return
		}

		event, err := verifier.Verify(ctx, payload, r.Header.Get(stripeSignatureHeader))
		if err != nil {
			responses.WriteWebhookError(ctx, logg, w, err, "", "")
			return
		}
		eventType := string(event.Type)
		ctx = logg.WithEvent(ctx, event.ID, eventType)

		if guard != nil {
			acquired, err := guard.Acquire(ctx, event.ID)
			switch {
			case err != nil:
				// the processed-event table still catches duplicates
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "in-flight lock unavailable, processing without it")
			case !acquired:
				responses.WriteWebhookError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "event is being processed by another request"), event.ID, eventType)
				return
			default:
				defer func() {
					if err := guard.Release(context.WithoutCancel(ctx), event.ID); err != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "release in-flight lock")
					}
				}()
			}
		}

		result, err := process(ctx, svc, event, payload)
		if err != nil {
			responses.WriteWebhookError(ctx, logg, w, err, event.ID, eventType)
			return
		}

		responses.WriteWebhookAck(w, result.EventID, result.EventType, result.ProcessedAt)
	}
}

func process(ctx context.Context, svc StripeWebhookService, event *stripe.Event, payload []byte) (result *stripewebhook.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("panic processing event: %v", rec))
		}
	}()
	result, err = svc.Process(ctx, event, payload)
	if err == nil && result == nil {
		err = pkgerrors.New(pkgerrors.CodeInternal, "webhook service returned no result")
	}
	return result, err
}
