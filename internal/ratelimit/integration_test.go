package ratelimit

import (
	"context"
	"testing"
)

// Evaluator and Redis store working together, end to end.
func TestLimiter_WithRedisStore(t *testing.T) {
	store := newTestStore(t)
	limiter := NewLimiter(store)
	ctx := context.Background()

	if !limiter.Enforcing() {
		t.Fatal("limiter with a store should report enforcing")
	}

	// upload/FREE allows 5 per hour
	limit := PolicyFor(OpUpload, TierFree).Limit

	for i := 0; i < limit; i++ {
		result := limiter.Evaluate(ctx, OpUpload, "user-1", TierFree)
		if !result.Success {
			t.Fatalf("call %d: expected success", i+1)
		}
		if result.Remaining != limit-i-1 {
			t.Fatalf("call %d: expected remaining %d, got %d", i+1, limit-i-1, result.Remaining)
		}
	}

	denied := limiter.Evaluate(ctx, OpUpload, "user-1", TierFree)
	if denied.Success {
		t.Fatal("expected denial once the window is spent")
	}
	if denied.Err != "Rate limit exceeded" {
		t.Fatalf("unexpected error message %q", denied.Err)
	}

	// Status sees the exhausted window without spending anything
	status := limiter.Status(ctx, OpUpload, "user-1", TierFree)
	if status.Success || status.Remaining != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	// Another user is unaffected
	other := limiter.Evaluate(ctx, OpUpload, "user-2", TierFree)
	if !other.Success {
		t.Fatal("another user's bucket must be independent")
	}

	// Administrative reset restores the full window
	if !limiter.Reset(ctx, OpUpload, "user-1", TierFree) {
		t.Fatal("expected reset to succeed")
	}

	fresh := limiter.Evaluate(ctx, OpUpload, "user-1", TierFree)
	if !fresh.Success || fresh.Remaining != limit-1 {
		t.Fatalf("expected fresh window after reset, got %+v", fresh)
	}
}
