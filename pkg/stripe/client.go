package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/releasehub-billing/pkg/config"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)

	// ErrLookupDisabled is returned by CustomerEmail when no API key is configured.
	ErrLookupDisabled = errors.New("stripe api lookups disabled: no api key configured")
)

// Client carries the webhook signing secret and an optional API client for customer lookups.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient validates the Stripe settings. The API key is optional; without it customer
// emails cannot be fetched and resolution relies on the event payload alone. A missing signing
// secret is not an error here so that webhook requests can report it per delivery.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	c := &Client{
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.WebhookSecret),
	}

	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		if err := validateAPIKey(env, apiKey); err != nil {
			return nil, err
		}
		c.api = stripe.NewClient(apiKey)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"stripe_env":        env,
			"api_lookups":       c.api != nil,
			"webhook_secret_ok": c.signingSecret != "",
		})
		if c.signingSecret == "" {
			logg.Warn(ctx, "stripe webhook secret is not configured; webhook deliveries will fail")
		} else {
			logg.Info(ctx, "stripe client initialized")
		}
	}

	return c, nil
}

// API returns the underlying Stripe API client, nil when no key is configured.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CustomerEmail fetches the email Stripe holds for customerID.
func (c *Client) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrLookupDisabled
	}
	customer, err := c.api.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", fmt.Errorf("retrieve stripe customer %s: %w", customerID, err)
	}
	if customer == nil || customer.Deleted {
		return "", nil
	}
	return customer.Email, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
