package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/marginalia-app/marginalia-api/internal/storage"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(storage.NewRedisFromClient(client))
}

func TestRedisStore_ConsumeSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c, err := store.Consume(ctx, "bucket", 3, time.Minute)
		if err != nil {
			t.Fatalf("consume %d: %v", i+1, err)
		}
		if !c.Allowed {
			t.Fatalf("consume %d: expected allowed", i+1)
		}
		if c.Remaining != 2-i {
			t.Fatalf("consume %d: expected remaining %d, got %d", i+1, 2-i, c.Remaining)
		}
	}

	c, err := store.Consume(ctx, "bucket", 3, time.Minute)
	if err != nil {
		t.Fatalf("consume 4: %v", err)
	}
	if c.Allowed {
		t.Fatal("consume 4: expected denial")
	}
	if c.Remaining != 0 {
		t.Fatalf("consume 4: expected remaining 0, got %d", c.Remaining)
	}
	if c.ResetAt <= time.Now().Add(-time.Second).UnixMilli() {
		t.Fatalf("consume 4: reset %d not in the future", c.ResetAt)
	}
}

func TestRedisStore_PeekDoesNotConsume(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Consume(ctx, "bucket", 5, time.Minute); err != nil {
		t.Fatalf("consume: %v", err)
	}

	for i := 0; i < 3; i++ {
		c, err := store.Peek(ctx, "bucket", 5, time.Minute)
		if err != nil {
			t.Fatalf("peek %d: %v", i+1, err)
		}
		if !c.Allowed || c.Remaining != 4 {
			t.Fatalf("peek %d: expected allowed with remaining 4, got %+v", i+1, c)
		}
	}
}

func TestRedisStore_PeekEmptyBucket(t *testing.T) {
	store := newTestStore(t)

	c, err := store.Peek(context.Background(), "untouched", 10, time.Minute)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if !c.Allowed || c.Remaining != 10 {
		t.Fatalf("expected full quota on untouched bucket, got %+v", c)
	}
}

func TestRedisStore_DeleteRestoresQuota(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.Consume(ctx, "bucket", 2, time.Minute); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}

	if c, _ := store.Consume(ctx, "bucket", 2, time.Minute); c.Allowed {
		t.Fatal("expected exhausted bucket")
	}

	if err := store.Delete(ctx, "bucket"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	c, err := store.Consume(ctx, "bucket", 2, time.Minute)
	if err != nil {
		t.Fatalf("consume after delete: %v", err)
	}
	if !c.Allowed || c.Remaining != 1 {
		t.Fatalf("expected fresh bucket after delete, got %+v", c)
	}
}

func TestRedisStore_WindowSlides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if c, _ := store.Consume(ctx, "bucket", 1, time.Minute); !c.Allowed {
		t.Fatal("first consume should be allowed")
	}
	if c, _ := store.Consume(ctx, "bucket", 1, time.Minute); c.Allowed {
		t.Fatal("second consume within the window should be denied")
	}

	// Move past the window: the old entry gets trimmed and a slot frees up
	store.now = func() time.Time { return base.Add(time.Minute + time.Second) }

	c, err := store.Consume(ctx, "bucket", 1, time.Minute)
	if err != nil {
		t.Fatalf("consume after window: %v", err)
	}
	if !c.Allowed {
		t.Fatal("expected a free slot once the window slid past the old entry")
	}
}

func TestRedisStore_DistinctKeysIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if c, _ := store.Consume(ctx, "user-a", 1, time.Minute); !c.Allowed {
		t.Fatal("user-a should be allowed")
	}
	if c, _ := store.Consume(ctx, "user-a", 1, time.Minute); c.Allowed {
		t.Fatal("user-a should now be exhausted")
	}
	if c, _ := store.Consume(ctx, "user-b", 1, time.Minute); !c.Allowed {
		t.Fatal("user-b must not be affected by user-a's bucket")
	}
}
