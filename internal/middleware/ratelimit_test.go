package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/model"
)

func TestLocalLimiter_IPBurst(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter(RateLimits{IPPerSecond: 1, IPBurst: 2})
	frozen := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return frozen }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, _ := l.AllowIP(ctx, "10.0.0.1")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	res, _ := l.AllowIP(ctx, "10.0.0.1")
	if res.Allowed {
		t.Fatal("third request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	other, _ := l.AllowIP(ctx, "10.0.0.2")
	if !other.Allowed {
		t.Error("buckets must be per IP")
	}

	frozen = frozen.Add(time.Second)
	res, _ = l.AllowIP(ctx, "10.0.0.1")
	if !res.Allowed {
		t.Error("bucket should refill after a second")
	}
}

func TestLocalLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter(RateLimits{KeyBurst: 3})
	for i := 0; i < 10; i++ {
		res, _ := l.AllowKey(context.Background(), "k")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed with zero rate", i)
		}
	}
}

func TestRateLimitKey_Middleware(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter(RateLimits{KeyPerMinute: 60, KeyBurst: 1})
	frozen := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return frozen }

	handler := RateLimitKey(RateLimitConfig{
		Logger:       discardLogger(),
		Limiter:      l,
		Enabled:      true,
		KeyPerMinute: 60,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	id := &model.Identity{Role: model.RoleUser, User: &model.User{Avatar: "abc"}, Key: "user-key"}
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), id))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter(RateLimits{IPPerSecond: 1, IPBurst: 1})
	handler := RateLimitIP(RateLimitConfig{Logger: discardLogger(), Limiter: l, Enabled: false})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/register?uuid=x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestGetClientIP_StripsPort(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if got := getClientIP(req); got != "203.0.113.7" {
		t.Errorf("getClientIP() = %q, want 203.0.113.7", got)
	}
}

func TestLocalLimiter_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter(RateLimits{IPPerSecond: 1, IPBurst: 1})
	l.maxBuckets = 3
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}
	for _, ip := range ips {
		if res, _ := l.AllowIP(context.Background(), ip); !res.Allowed {
			t.Fatalf("first request from %s denied", ip)
		}
	}

	if n := len(l.buckets); n > l.maxBuckets {
		t.Fatalf("bucket table grew to %d, want at most %d", n, l.maxBuckets)
	}
	for _, ip := range ips[:2] {
		if _, ok := l.buckets["ip:"+ip]; ok {
			t.Errorf("oldest bucket %s still present", ip)
		}
	}
	if _, ok := l.buckets["ip:10.0.0.5"]; !ok {
		t.Error("newest bucket was evicted")
	}
}
