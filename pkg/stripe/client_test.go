package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/releasehub-billing/pkg/config"
)

func TestNewClientWithoutAPIKey(t *testing.T) {
	c, err := NewClient(context.Background(), config.StripeConfig{WebhookSecret: " whsec_abc "}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.API() != nil {
		t.Fatal("expected no api client without key")
	}
	if c.SigningSecret() != "whsec_abc" {
		t.Fatalf("expected trimmed secret, got %q", c.SigningSecret())
	}
	if c.Environment() != testEnv {
		t.Fatalf("expected test env, got %q", c.Environment())
	}
	if _, err := c.CustomerEmail(context.Background(), "cus_1"); !errors.Is(err, ErrLookupDisabled) {
		t.Fatalf("expected ErrLookupDisabled, got %v", err)
	}
}

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{name: "test key in test env", cfg: config.StripeConfig{Env: "test", APIKey: "sk_test_123"}},
		{name: "restricted live key", cfg: config.StripeConfig{Env: "LIVE", APIKey: "rk_live_123"}},
		{name: "live key in test env", cfg: config.StripeConfig{Env: "test", APIKey: "sk_live_123"}, wantErr: true},
		{name: "test key in live env", cfg: config.StripeConfig{Env: "live", APIKey: "sk_test_123"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{Env: "staging"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.API() == nil {
				t.Fatal("expected api client when key configured")
			}
		})
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.API() != nil || c.Environment() != "" || c.SigningSecret() != "" {
		t.Fatal("nil client accessors should return zero values")
	}
}
