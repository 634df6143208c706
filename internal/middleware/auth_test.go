package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/metrics"
	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/repository"
)

type mapFinder map[string]*model.User

func (m mapFinder) FindUserBy(ctx context.Context, field repository.Field, value string) (*model.User, error) {
	if u, ok := m[value]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractAPIKey_Precedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		header string
		query  string
		want   string
	}{
		{"body apiKey wins", `{"apiKey":"body-api","key":"body-key"}`, "hdr", "qry", "body-api"},
		{"body key before header", `{"key":"body-key"}`, "hdr", "qry", "body-key"},
		{"header before query", `{"item":"x"}`, "hdr", "qry", "hdr"},
		{"query last", "", "", "qry", "qry"},
		{"non string body field ignored", `{"apiKey":42}`, "hdr", "", "hdr"},
		{"invalid json ignored", `apiKey=nope`, "hdr", "", "hdr"},
		{"nothing", "", "", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target := "/api/spend"
			if tt.query != "" {
				target += "?key=" + tt.query
			}
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodPost, target, body)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}

			got, err := ExtractAPIKey(req)
			if err != nil {
				t.Fatalf("ExtractAPIKey: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}

			// Body must still be readable downstream.
			rest, _ := io.ReadAll(req.Body)
			if string(rest) != tt.body {
				t.Errorf("body after peek = %q, want %q", rest, tt.body)
			}
		})
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	user := &model.User{Avatar: "abc", APIKey: "user-key", Balance: 100}
	gate := auth.NewGate(
		auth.NewMasterKey("master-key"),
		auth.NewUserKey(mapFinder{"user-key": user}),
	)

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantRole   model.Role
	}{
		{"master", "master-key", http.StatusOK, model.RoleAdmin},
		{"user", "user-key", http.StatusOK, model.RoleUser},
		{"unknown", "nope", http.StatusForbidden, ""},
		{"missing", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := metrics.NewInMemory()
			var gotRole model.Role
			called := false
			handler := Auth(AuthConfig{Logger: discardLogger(), Gate: gate, Metrics: rec})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					called = true
					gotRole = auth.IdentityFromContext(r.Context()).Role
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if called {
					t.Error("handler must not run on auth failure")
				}
				if !strings.Contains(w.Body.String(), `"message":"Invalid API Key"`) {
					t.Errorf("body = %s", w.Body.String())
				}
				if rec.Snapshot().AuthFailures != 1 {
					t.Error("expected auth failure to be counted")
				}
				return
			}
			if gotRole != tt.wantRole {
				t.Errorf("role = %q, want %q", gotRole, tt.wantRole)
			}
		})
	}
}

func TestAuth_BodyKeyReachesHandlerBody(t *testing.T) {
	t.Parallel()

	user := &model.User{Avatar: "abc", APIKey: "user-key"}
	gate := auth.NewGate(auth.NewUserKey(mapFinder{"user-key": user}))

	const payload = `{"apiKey":"user-key","amount":5}`
	var seen string
	handler := Auth(AuthConfig{Logger: discardLogger(), Gate: gate})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/spend", strings.NewReader(payload))
	req.Header.Set(APIKeyHeader, "ignored")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != payload {
		t.Errorf("handler body = %q, want %q", seen, payload)
	}
}
