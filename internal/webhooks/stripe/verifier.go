package stripewebhook

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/releasehub-billing/pkg/config"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/metrics"
)

type signingSecretSource interface {
	SigningSecret() string
}

// Verifier authenticates raw webhook bodies against the Stripe-Signature header.
type Verifier struct {
	secrets          signingSecretSource
	tolerance        time.Duration
	ignoreAPIVersion bool
	logg             *logger.Logger
	metrics          *metrics.WebhookMetrics
}

func NewVerifier(secrets signingSecretSource, cfg config.StripeConfig, logg *logger.Logger, m *metrics.WebhookMetrics) *Verifier {
	if logg == nil {
		logg = logger.Nop()
	}
	tolerance := cfg.SignatureTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{
		secrets:          secrets,
		tolerance:        tolerance,
		ignoreAPIVersion: cfg.IgnoreAPIVersionMismatch,
		logg:             logg,
		metrics:          m,
	}
}

// Verify checks the signature over the exact bytes received and decodes the event.
// It returns a CodeConfiguration error when no secret is set and CodeSignature when
// the header is missing, malformed, expired or does not match.
func (v *Verifier) Verify(ctx context.Context, payload []byte, signatureHeader string) (*stripe.Event, error) {
	secret := ""
	if v.secrets != nil {
		secret = v.secrets.SigningSecret()
	}
	if secret == "" {
		v.metrics.IncRejected(provider, "configuration")
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "stripe webhook secret not configured")
	}
	if signatureHeader == "" {
		v.reject(ctx, "missing_signature", webhook.ErrNotSigned)
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: v.ignoreAPIVersion,
	})
	if err != nil {
		if isSignatureError(err) {
			v.reject(ctx, "invalid_signature", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify stripe signature")
		}
		v.reject(ctx, "malformed_event", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe event")
	}

	v.logg.Debug(v.logg.WithEvent(ctx, event.ID, string(event.Type)), "stripe signature verified")
	return &event, nil
}

func (v *Verifier) reject(ctx context.Context, reason string, err error) {
	v.metrics.IncRejected(provider, reason)
	v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
		"reason": reason,
		"error":  err.Error(),
	}), "stripe webhook rejected")
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
