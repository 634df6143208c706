package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/metrics"
)

// APIKeyHeader is the header carrying an API key.
const APIKeyHeader = "X-API-Key"

// APIKeyQueryParam is the query parameter carrying an API key.
const APIKeyQueryParam = "key"

// bodyKeyFields are checked in order inside a JSON request body.
var bodyKeyFields = []string{"apiKey", "key"}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Gate    *auth.Gate
	Metrics metrics.Recorder
}

// Auth returns a middleware that admits requests through the gate and
// injects the resolved identity into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := ExtractAPIKey(r)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, `{"error":"Invalid request body"}`)
				return
			}

			if key == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_key"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncAuthFailure("missing_key")
				writeAuthError(w)
				return
			}

			id, err := cfg.Gate.Authenticate(r.Context(), key)
			if errors.Is(err, auth.ErrUnauthorized) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "invalid_key"),
					slog.String("key", auth.MaskKey(key)),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncAuthFailure("invalid_key")
				writeAuthError(w)
				return
			}
			if err != nil {
				cfg.Logger.Error("storage error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, `{"error":"Storage error"}`)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("role", string(id.Role)),
				slog.String("avatar", id.Avatar()),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractAPIKey returns the presented key using one precedence rule:
// JSON body field apiKey, then key, then the X-API-Key header, then the
// key query parameter. The body is restored for the next handler.
func ExtractAPIKey(r *http.Request) (string, error) {
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if gjson.ValidBytes(body) {
			for _, field := range bodyKeyFields {
				v := gjson.GetBytes(body, field)
				if v.Type == gjson.String && v.Str != "" {
					return v.Str, nil
				}
			}
		}
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, nil
	}

	return r.URL.Query().Get(APIKeyQueryParam), nil
}

// writeAuthError writes a 403 response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusForbidden, `{"error":"Unauthorized","message":"Invalid API Key"}`)
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
