package domain

import (
	"context"
	"time"
)

// TokenMapCache holds the most recent token-map snapshot so a failed Gamma
// fetch can degrade to explicitly-stale data instead of none.
type TokenMapCache interface {
	Set(ctx context.Context, snap TokenMapSnapshot) error
	Get(ctx context.Context) (TokenMapSnapshot, error)
}

// RateLimiter provides distributed rate limiting for outbound RPC calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes newly generated signals to live consumers (the
// WebSocket hub and any external subscriber).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
