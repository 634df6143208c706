package handler

import (
	"log/slog"
	"net/http"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/handler/dto"
	"github.com/meeter/meeter/internal/service"
)

// StatsHandler handles per-avatar stats snapshots.
type StatsHandler struct {
	ledger *service.Ledger
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(ledger *service.Ledger, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Save handles GET /save?uuid=&key=&stats=.
func (h *StatsHandler) Save(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	avatar := q.Get("uuid")

	if err := h.ledger.SaveStats(r.Context(), avatar, q.Get("key"), q.Get("stats")); err != nil {
		writeServiceError(w, r, h.logger, err, errorText{})
		return
	}

	h.logger.Debug("stats_saved", "avatar", avatar)

	writeJSON(w, http.StatusOK, dto.MessageResponse{
		Status:  statusSuccess,
		Message: "Stats saved",
	})
}

// Get handles GET /api/stats.
// Users read their own entry; the admin names one with ?avatar=.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	avatar := id.Avatar()
	if id.IsAdmin() {
		avatar = r.URL.Query().Get("avatar")
	}
	if avatar == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:    "Missing parameters",
			Required: []string{"avatar"},
		})
		return
	}

	entry, err := h.ledger.Stats(r.Context(), avatar)
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{})
		return
	}

	writeJSON(w, http.StatusOK, dto.StatsResponse{
		Avatar:    avatar,
		Stats:     entry.Stats,
		Timestamp: entry.Timestamp,
	})
}
