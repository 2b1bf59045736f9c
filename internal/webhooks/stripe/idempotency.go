package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const provider = "stripe"

type inFlightStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookInFlightKey(provider, eventID string) string
}

// InFlightGuard marks an event as being processed so a concurrent redelivery is turned away.
// The processed-event table stays the source of truth for duplicates.
type InFlightGuard struct {
	store inFlightStore
	ttl   time.Duration
}

func NewInFlightGuard(store inFlightStore, ttl time.Duration) (*InFlightGuard, error) {
	if store == nil {
		return nil, errors.New("in-flight store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &InFlightGuard{store: store, ttl: ttl}, nil
}

// Acquire reports whether the caller now holds the in-flight mark for eventID.
// A nil guard always grants the mark.
func (g *InFlightGuard) Acquire(ctx context.Context, eventID string) (bool, error) {
	if g == nil {
		return true, nil
	}
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookInFlightKey(provider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set in-flight key: %w", err)
	}
	return set, nil
}

func (g *InFlightGuard) Release(ctx context.Context, eventID string) error {
	if g == nil {
		return nil
	}
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookInFlightKey(provider, eventID))
}
