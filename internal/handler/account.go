package handler

import (
	"log/slog"
	"net/http"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/handler/dto"
	"github.com/meeter/meeter/internal/service"
)

// AccountHandler handles registration and profile reads.
type AccountHandler struct {
	ledger *service.Ledger
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger *service.Ledger, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
		logger: logger,
	}
}

// RegisterQuery handles GET /register?uuid=.
func (h *AccountHandler) RegisterQuery(w http.ResponseWriter, r *http.Request) {
	user, err := h.ledger.Register(r.Context(), r.URL.Query().Get("uuid"), "")
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{Missing: "Missing uuid"})
		return
	}

	h.logger.Info("account_registered",
		"avatar", user.Avatar,
		"route", "query",
	)

	writeJSON(w, http.StatusOK, dto.QueryRegisterResponse{
		Status:  statusSuccess,
		Message: "Account created",
		APIKey:  user.APIKey,
		Balance: user.Balance,
	})
}

// Register handles POST /api/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	user, err := h.ledger.Register(r.Context(), req.Avatar, req.Name)
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{Missing: "Missing avatar"})
		return
	}

	h.logger.Info("account_registered",
		"avatar", user.Avatar,
		"route", "json",
	)

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{
		APIKey:         user.APIKey,
		Status:         statusSuccess,
		InitialBalance: user.Balance,
	})
}

// Balance handles GET /api/balance.
// The balance is the one resolved by the auth gate for this request.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToAccountBalanceResponse(id))
}

// User handles GET /api/user.
func (h *AccountHandler) User(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToUserResponse(id))
}
