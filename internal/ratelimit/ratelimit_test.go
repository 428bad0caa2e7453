package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryBurstThenDeny(t *testing.T) {
	limiter := NewMemory(3, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user-1")
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v (%v)", i, ok, err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "user-1"); ok {
		t.Fatal("expected fourth request to be denied")
	}
	if ok, _ := limiter.Allow(ctx, "user-2"); !ok {
		t.Fatal("buckets must be per key")
	}
}

func TestMemoryForgetsRefilledBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemory(2, 60)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "user-1"); !ok {
			t.Fatalf("request %d: expected allowed", i)
		}
	}
	if ok, _ := limiter.Allow(ctx, "user-1"); ok {
		t.Fatal("expected third request to be denied")
	}

	// Half a minute later the bucket is still draining and must be kept.
	now = now.Add(30 * time.Second)
	limiter.lastSweep = time.Time{}
	limiter.Allow(ctx, "user-2")
	if _, ok := limiter.buckets["user-1"]; !ok {
		t.Fatal("a partially refilled bucket must not be forgotten")
	}

	now = now.Add(10 * time.Minute)
	limiter.Allow(ctx, "user-3")
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected only the new bucket to remain, got %d", len(limiter.buckets))
	}
	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "user-1"); !ok {
			t.Fatalf("request %d after refill: expected allowed", i)
		}
	}
}

func TestUnlimited(t *testing.T) {
	var limiter Limiter = Unlimited{}
	for i := 0; i < 100; i++ {
		if ok, err := limiter.Allow(context.Background(), "k"); !ok || err != nil {
			t.Fatalf("expected unlimited to allow, got %v (%v)", ok, err)
		}
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisFixedWindow(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedis(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, err := limiter.Allow(ctx, "user-1"); err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v (%v)", i, ok, err)
		}
	}
	if ok, err := limiter.Allow(ctx, "user-1"); err != nil || ok {
		t.Fatalf("expected third request denied, got %v (%v)", ok, err)
	}
	if ok, err := limiter.Allow(ctx, "user-2"); err != nil || !ok {
		t.Fatalf("windows must be per key, got %v (%v)", ok, err)
	}

	ttl := mr.TTL("fintrack:ratelimit:user-1")
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected the window to expire within a minute, ttl = %s", ttl)
	}

	mr.FastForward(time.Minute)
	if ok, err := limiter.Allow(ctx, "user-1"); err != nil || !ok {
		t.Fatalf("expected a new window after expiry, got %v (%v)", ok, err)
	}
}

func TestRedisRestoresMissingExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedis(client, 2, time.Minute)
	ctx := context.Background()

	// A counter over the limit with no TTL would otherwise deny this owner forever.
	key := "fintrack:ratelimit:user-1"
	if err := mr.Set(key, "7"); err != nil {
		t.Fatalf("failed to seed counter: %v", err)
	}

	if ok, err := limiter.Allow(ctx, "user-1"); err != nil || ok {
		t.Fatalf("expected denial while over the limit, got %v (%v)", ok, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected the counter to get an expiry, ttl = %s", ttl)
	}

	mr.FastForward(time.Minute)
	if ok, err := limiter.Allow(ctx, "user-1"); err != nil || !ok {
		t.Fatalf("expected the owner to be allowed again, got %v (%v)", ok, err)
	}
}
