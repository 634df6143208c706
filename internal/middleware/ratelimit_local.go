package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/meeter/meeter/internal/cache"
)

// maxLocalBuckets bounds the in-process bucket table.
const maxLocalBuckets = 10000

// idleBucketTTL is how long an unused bucket survives a sweep.
const idleBucketTTL = 10 * time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps token buckets in process memory.
// Used when Redis is not configured; limits are per instance.
type LocalLimiter struct {
	limits RateLimits

	mu         sync.Mutex
	buckets    map[string]*localBucket
	maxBuckets int
	now        func() time.Time
}

// NewLocalLimiter creates an in-process limiter.
func NewLocalLimiter(limits RateLimits) *LocalLimiter {
	return &LocalLimiter{
		limits:     limits,
		buckets:    make(map[string]*localBucket),
		maxBuckets: maxLocalBuckets,
		now:        time.Now,
	}
}

// AllowKey implements Limiter.
func (l *LocalLimiter) AllowKey(ctx context.Context, apiKey string) (*cache.RateLimitResult, error) {
	if l.limits.KeyPerMinute == 0 {
		return l.unlimited(l.limits.KeyBurst), nil
	}
	limit := rate.Limit(float64(l.limits.KeyPerMinute) / 60.0)
	return l.allow("key:"+cache.HashBucketKey(apiKey), limit, l.limits.KeyBurst), nil
}

// AllowIP implements Limiter.
func (l *LocalLimiter) AllowIP(ctx context.Context, ip string) (*cache.RateLimitResult, error) {
	if l.limits.IPPerSecond == 0 {
		return l.unlimited(l.limits.IPBurst), nil
	}
	return l.allow("ip:"+ip, rate.Limit(l.limits.IPPerSecond), l.limits.IPBurst), nil
}

func (l *LocalLimiter) allow(bucket string, limit rate.Limit, burst int) *cache.RateLimitResult {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[bucket]
	if !ok {
		if len(l.buckets) >= l.maxBuckets {
			l.sweep(now)
		}
		b = &localBucket{limiter: rate.NewLimiter(limit, burst)}
		l.buckets[bucket] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return &cache.RateLimitResult{Allowed: false, ResetAt: now.Add(time.Minute), RetryAfter: time.Minute}
	}

	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return &cache.RateLimitResult{
			Allowed:    false,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}
	}

	return &cache.RateLimitResult{
		Allowed:   true,
		Remaining: int64(b.limiter.TokensAt(now)),
		ResetAt:   now.Add(time.Duration(float64(time.Second) / float64(limit))),
	}
}

// sweep drops idle buckets, then the least recently seen one if the
// table is still full. Caller holds mu.
func (l *LocalLimiter) sweep(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(l.buckets, k)
			continue
		}
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = k, b.lastSeen
		}
	}
	if len(l.buckets) >= l.maxBuckets && oldestKey != "" {
		delete(l.buckets, oldestKey)
	}
}

func (l *LocalLimiter) unlimited(burst int) *cache.RateLimitResult {
	return &cache.RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   l.now().Add(time.Minute),
	}
}
