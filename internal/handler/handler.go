// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meeter/meeter/internal/handler/dto"
)

// Version is reported by the status banner.
const Version = "1.1.0"

const statusSuccess = "success"

// Handler serves the status banner and the router fallbacks.
type Handler struct {
	currency string
	now      func() time.Time
}

// New creates a new Handler for the given currency display name.
func New(currency string) *Handler {
	return &Handler{currency: currency, now: time.Now}
}

// Status reports that the service is running.
// GET /
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.StatusResponse{
		Status:    "running",
		Service:   fmt.Sprintf("%s Delivery & Meeter API", h.currency),
		Version:   Version,
		Timestamp: h.now().UTC(),
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "resource not found"})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "method not allowed"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a request body; an empty body decodes as {}.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
