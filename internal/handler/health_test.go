package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler("file", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		store      HealthChecker
		cache      HealthChecker
		wantStatus int
		wantStore  string
		wantRedis  string
	}{
		{
			name:       "all healthy",
			store:      &mockHealthChecker{},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantStore:  "ok",
			wantRedis:  "ok",
		},
		{
			name:       "store unhealthy",
			store:      &mockHealthChecker{err: errors.New("connection refused")},
			cache:      &mockHealthChecker{},
			wantStatus: http.StatusServiceUnavailable,
			wantStore:  "error: connection refused",
			wantRedis:  "ok",
		},
		{
			name:       "redis not configured",
			store:      &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantStore:  "ok",
			wantRedis:  "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("postgres", tt.store, tt.cache)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			rec := httptest.NewRecorder()

			h.Readyz(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if response.Checks["store:postgres"] != tt.wantStore {
				t.Errorf("store check = %q, want %q", response.Checks["store:postgres"], tt.wantStore)
			}
			if response.Checks["redis"] != tt.wantRedis {
				t.Errorf("redis check = %q, want %q", response.Checks["redis"], tt.wantRedis)
			}
		})
	}
}
