package ratelimit

import (
	"context"
	"log"
	"time"
)

// Result is the outcome of one rate-limit decision.
type Result struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Reset     int64  `json:"reset"` // epoch milliseconds
	Err       string `json:"error,omitempty"`
}

// Limiter decides whether a request may spend one slot of its quota.
//
// It holds no mutable state of its own: the policy table is read-only and all
// counting lives in the store, so any number of instances can evaluate
// concurrently. A nil store means rate limiting is unconfigured and every
// decision fails open; a store error on an individual call fails open for
// that call only. Rate limiting protects cost, it is not a security boundary,
// so store trouble must never block the underlying feature.
type Limiter struct {
	store CountingStore
	now   func() time.Time
}

// NewLimiter builds a Limiter on the given counting store. Passing nil is the
// explicit "no store configured" state and puts the limiter in fail-open mode.
func NewLimiter(store CountingStore) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
	}
}

// Enforcing reports whether a counting store is configured.
func (l *Limiter) Enforcing() bool {
	return l.store != nil
}

// Evaluate consumes one slot for (operation, user, tier), or explains why it
// couldn't. It never returns an error: policy denials and exhausted windows
// come back as unsuccessful Results, and store failures fail open.
func (l *Limiter) Evaluate(ctx context.Context, op Operation, userID string, tier Tier) Result {
	policy := PolicyFor(op, tier)
	now := l.now()

	// Business-rule denial, decided before any store access.
	if policy.Limit == 0 {
		return Result{
			Success: false,
			Limit:   0,
			Reset:   resetFor(policy, now),
			Err:     "feature not available on tier",
		}
	}

	if l.store == nil {
		log.Printf("[ratelimit] WARN store not configured, op=%s user=%s tier=%s allowed without enforcement", op, userID, tier)
		return openResult(policy, now)
	}

	key := BuildKey(op, userID, tier, now)

	c, err := l.store.Consume(ctx, key, policy.Limit, policy.Window)
	if err != nil {
		log.Printf("[ratelimit] ERROR consume failed op=%s user=%s tier=%s: %v (failing open)", op, userID, tier, err)
		return openResult(policy, now)
	}

	result := resultFrom(c, policy, now)
	if !c.Allowed {
		result.Err = "Rate limit exceeded"
		log.Printf("[ratelimit] WARN limit exceeded op=%s user=%s tier=%s remaining=%d reset=%d", op, userID, tier, result.Remaining, result.Reset)
	}

	return result
}

// Status reports the current quota without spending any of it. It mirrors
// Evaluate, including both fail-open paths.
func (l *Limiter) Status(ctx context.Context, op Operation, userID string, tier Tier) Result {
	policy := PolicyFor(op, tier)
	now := l.now()

	if policy.Limit == 0 {
		return Result{
			Success: false,
			Limit:   0,
			Reset:   resetFor(policy, now),
			Err:     "feature not available on tier",
		}
	}

	if l.store == nil {
		return openResult(policy, now)
	}

	key := BuildKey(op, userID, tier, now)

	c, err := l.store.Peek(ctx, key, policy.Limit, policy.Window)
	if err != nil {
		log.Printf("[ratelimit] ERROR peek failed op=%s user=%s tier=%s: %v (failing open)", op, userID, tier, err)
		return openResult(policy, now)
	}

	result := resultFrom(c, policy, now)
	if !c.Allowed {
		result.Err = "Rate limit exceeded"
	}

	return result
}

// Reset clears the counting bucket for (operation, user, tier), e.g. after a
// tier upgrade. Returns false if the store is unavailable or the delete
// fails; it never returns an error and does not retry.
func (l *Limiter) Reset(ctx context.Context, op Operation, userID string, tier Tier) bool {
	if l.store == nil {
		return false
	}

	key := BuildKey(op, userID, tier, l.now())

	if err := l.store.Delete(ctx, key); err != nil {
		log.Printf("[ratelimit] ERROR reset failed op=%s user=%s tier=%s: %v", op, userID, tier, err)
		return false
	}

	return true
}

// Full quota granted without counting. Used for every fail-open path.
func openResult(policy Policy, now time.Time) Result {
	return Result{
		Success:   true,
		Remaining: policy.Limit,
		Limit:     policy.Limit,
		Reset:     resetFor(policy, now),
	}
}

func resultFrom(c Consumption, policy Policy, now time.Time) Result {
	result := Result{
		Success:   c.Allowed,
		Remaining: c.Remaining,
		Limit:     c.Limit,
		Reset:     c.ResetAt,
	}

	// Daily buckets rotate at UTC midnight, so report that boundary rather
	// than the store's sliding estimate.
	if policy.Daily {
		result.Reset = resetFor(policy, now)
	}

	return result
}

func resetFor(policy Policy, now time.Time) int64 {
	if policy.Daily {
		u := now.UTC()
		midnight := time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
		return midnight.UnixMilli()
	}

	return now.Add(policy.Window).UnixMilli()
}
