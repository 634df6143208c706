package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/cache"
)

// Limiter decides whether a request in a bucket may proceed.
type Limiter interface {
	AllowKey(ctx context.Context, apiKey string) (*cache.RateLimitResult, error)
	AllowIP(ctx context.Context, ip string) (*cache.RateLimitResult, error)
}

// RateLimits holds the bucket sizes shared by both limiter backends.
type RateLimits struct {
	KeyPerMinute int
	KeyBurst     int
	IPPerSecond  int
	IPBurst      int
}

// RedisLimiter keeps buckets in Redis so limits hold across instances.
type RedisLimiter struct {
	cache  *cache.Cache
	limits RateLimits
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(c *cache.Cache, limits RateLimits) *RedisLimiter {
	return &RedisLimiter{cache: c, limits: limits}
}

// AllowKey implements Limiter.
func (l *RedisLimiter) AllowKey(ctx context.Context, apiKey string) (*cache.RateLimitResult, error) {
	return l.cache.CheckKeyRateLimit(ctx, apiKey, l.limits.KeyPerMinute, l.limits.KeyBurst)
}

// AllowIP implements Limiter.
func (l *RedisLimiter) AllowIP(ctx context.Context, ip string) (*cache.RateLimitResult, error) {
	return l.cache.CheckIPRateLimit(ctx, ip, l.limits.IPPerSecond, l.limits.IPBurst)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Enabled bool
	// KeyPerMinute is reported in X-RateLimit-Limit.
	KeyPerMinute int
}

// RateLimitKey rate limits per presented API key.
// Must be applied after Auth middleware.
func RateLimitKey(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			id := auth.IdentityFromContext(r.Context())
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.AllowKey(r.Context(), id.Key)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("role", string(id.Role)),
				)
				// Fail open
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.KeyPerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", "key"),
					slog.String("role", string(id.Role)),
					slog.String("avatar", id.Avatar()),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP rate limits per client IP. Used on public routes.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			result, err := cfg.Limiter.AllowIP(r.Context(), ip)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", "ip"),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSONError(w, http.StatusTooManyRequests,
		fmt.Sprintf(`{"error":"Too many requests","message":"Retry after %d seconds"}`, seconds))
}

// getClientIP returns the host part of RemoteAddr.
// chi's RealIP middleware has already applied X-Forwarded-For / X-Real-IP.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
