package ratelimit

import (
	"context"
	"time"
)

// Consumption is the counting store's answer to a consume or peek call.
type Consumption struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   int64 // epoch milliseconds
}

// CountingStore is the atomic, TTL-expiring counter the limiter runs on.
// Consume spends one slot in the window, Peek reports without spending,
// Delete clears the bucket (administrative reset).
type CountingStore interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration) (Consumption, error)

	Peek(ctx context.Context, key string, limit int, window time.Duration) (Consumption, error)

	Delete(ctx context.Context, key string) error
}
