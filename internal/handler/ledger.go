package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/handler/dto"
	"github.com/meeter/meeter/internal/service"
)

// LedgerHandler handles balance mutations and the delivery log.
type LedgerHandler struct {
	ledger *service.Ledger
	logger *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *service.Ledger, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Interact handles POST /api/v1/machine/interact.
// The key in the body must belong to avatarKey; the master key does not count.
func (h *LedgerHandler) Interact(w http.ResponseWriter, r *http.Request) {
	var req dto.InteractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	key, isString := looseString(req.APIKey)
	input := service.CreditInput{
		Avatar: req.AvatarKey,
		Amount: req.Energia,
	}
	if isString {
		input.APIKey = key
	} else {
		input.NonStringKey = !service.IsFalsy(req.APIKey)
	}

	balance, err := h.ledger.Credit(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{
			Missing:       "Missing required fields",
			Unauthorized:  "Unauthorized or user not found",
			InvalidAmount: "Invalid energia value",
		})
		return
	}

	h.logger.Debug("balance_credited",
		"avatar", req.AvatarKey,
		"balance", balance,
	)

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		Status:  statusSuccess,
		Balance: balance,
	})
}

// Spend handles POST /api/spend.
func (h *LedgerHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req dto.SpendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	amount, err := service.ParseStrictAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{})
		return
	}

	reason, _ := looseString(req.Reason)
	if service.IsFalsy(req.Reason) {
		reason = ""
	}

	id := auth.IdentityFromContext(r.Context())
	result, err := h.ledger.Debit(r.Context(), id, amount, reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{})
		return
	}

	h.logger.Info("balance_debited",
		"avatar", id.Avatar(),
		"spent", result.Spent,
		"reason", result.Reason,
	)

	writeJSON(w, http.StatusOK, dto.SpendResponse{
		Status:     statusSuccess,
		Spent:      result.Spent,
		NewBalance: result.NewBalance,
		Reason:     result.Reason,
	})
}

// Deliver handles POST /api/deliver.
func (h *LedgerHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	var req dto.DeliverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidJSON(w)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	d, err := h.ledger.Deliver(r.Context(), id, service.DeliverInput{
		Item:   req.Item,
		Avatar: req.Avatar,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, errorText{})
		return
	}

	h.logger.Info("delivery_logged",
		"delivery_id", d.ID,
		"item", d.Item,
		"avatar", d.Avatar,
		"processed_by", d.ProcessedBy,
	)

	writeJSON(w, http.StatusOK, dto.MessageResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Delivering %s to %s", d.Item, d.Avatar),
	})
}

// looseString returns the value of a JSON string, or the compact JSON text
// of any other value with isString false.
func looseString(raw json.RawMessage) (s string, isString bool) {
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return strings.TrimSpace(string(raw)), false
}
