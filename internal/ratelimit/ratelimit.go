// Package ratelimit throttles recurring-transaction generation per owner.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether the owner identified by key may do one more unit of work now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// sweepInterval bounds how often Memory scans for buckets it can forget.
const sweepInterval = time.Minute

// Memory is a token bucket per key held in process memory.
type Memory struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
	now       func() time.Time
}

// NewMemory allows burst requests at once and refills perHour tokens spread over an hour.
func NewMemory(burst, perHour int) *Memory {
	return &Memory{
		limit:   rate.Every(time.Hour / time.Duration(max(perHour, 1))),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

func (m *Memory) Allow(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	bucket, ok := m.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(m.limit, m.burst)
		m.buckets[key] = bucket
	}
	return bucket.AllowN(now, 1), nil
}

// sweep forgets buckets that have refilled completely; a full bucket behaves exactly like
// a new one.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for key, bucket := range m.buckets {
		if bucket.TokensAt(now) >= float64(m.burst) {
			delete(m.buckets, key)
		}
	}
}

// Redis is a fixed-window counter shared by every process pointing at the same server.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int64
	window time.Duration
}

// windowScript counts one request and makes sure the key expires. The TTL is set whenever it
// is missing, so a key left without one by an older client still ends its window.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// NewRedis allows limit requests per key in each window.
func NewRedis(client redis.Scripter, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: "fintrack:ratelimit:", limit: int64(limit), window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	count, err := windowScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit for %s: %w", key, err)
	}
	return count <= r.limit, nil
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
