package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meeter/meeter/internal/handler/dto"
	"github.com/meeter/meeter/internal/middleware"
	"github.com/meeter/meeter/internal/service"
	"github.com/meeter/meeter/internal/store"
)

// errorText overrides the default error strings for one route.
// Empty fields keep the defaults.
type errorText struct {
	Missing       string
	Unauthorized  string
	InvalidAmount string
}

func (t errorText) or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// writeServiceError maps a service error to its status code and body.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, text errorText) {
	var missing *service.MissingFieldsError
	var insufficient *service.InsufficientBalanceError

	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:    text.or(text.Missing, "Missing parameters"),
			Required: missing.Required,
		})
	case errors.Is(err, service.ErrAvatarRequired):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: text.or(text.Missing, "Missing avatar")})
	case errors.Is(err, service.ErrAlreadyRegistered):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Already registered"})
	case errors.Is(err, service.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: text.or(text.InvalidAmount, "Invalid amount")})
	case errors.Is(err, service.ErrInvalidStats):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid stats value", Message: err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: text.or(text.Unauthorized, "Unauthorized")})
	case errors.As(err, &insufficient):
		resp := dto.ErrorResponse{Error: "Insufficient balance"}
		if !insufficient.NoAccount {
			balance := insufficient.Balance
			resp.CurrentBalance = &balance
		}
		writeJSON(w, http.StatusPaymentRequired, resp)
	case errors.Is(err, service.ErrStatsNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Stats not found"})
	case errors.Is(err, service.ErrUserVanished):
		logger.Error("user vanished during update",
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Unable to update user balance"})
	case errors.Is(err, store.ErrStorage):
		logger.Error("storage error",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Storage error"})
	default:
		logger.Error("unhandled service error",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}

func writeInvalidJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid JSON", Message: "Invalid request body"})
}
