// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"time"

	"github.com/meeter/meeter/internal/model"
)

// StatusResponse is the service banner.
type StatusResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Avatar string `json:"avatar"`
	Name   string `json:"name,omitempty"`
}

// RegisterResponse is returned by POST /api/register.
type RegisterResponse struct {
	APIKey         string  `json:"apiKey"`
	Status         string  `json:"status"`
	InitialBalance float64 `json:"initialBalance"`
}

// QueryRegisterResponse is returned by GET /register.
type QueryRegisterResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	APIKey  string  `json:"apiKey"`
	Balance float64 `json:"balance"`
}

// InteractRequest is the body of POST /api/v1/machine/interact.
// Energia stays raw so numbers and numeric strings are both accepted.
// APIKey stays raw so a non-string key is rejected as unauthorized.
type InteractRequest struct {
	APIKey    json.RawMessage `json:"apiKey"`
	AvatarKey string          `json:"avatarKey"`
	Energia   json.RawMessage `json:"energia"`
}

// BalanceResponse carries a balance after a credit.
type BalanceResponse struct {
	Status  string  `json:"status"`
	Balance float64 `json:"balance"`
}

// SpendRequest is the body of POST /api/spend.
type SpendRequest struct {
	Amount json.RawMessage `json:"amount"`
	// Reason accepts any JSON value; non-strings are kept as their JSON text.
	Reason json.RawMessage `json:"reason,omitempty"`
}

// SpendResponse is returned by POST /api/spend.
type SpendResponse struct {
	Status     string  `json:"status"`
	Spent      float64 `json:"spent"`
	NewBalance float64 `json:"newBalance"`
	Reason     string  `json:"reason"`
}

// DeliverRequest is the body of POST /api/deliver.
type DeliverRequest struct {
	Item   string `json:"item"`
	Avatar string `json:"avatar"`
}

// MessageResponse is a status plus a human-readable message.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AccountBalanceResponse is returned by GET /api/balance.
// Avatar and Balance are omitted for identities without an account.
type AccountBalanceResponse struct {
	Avatar  string     `json:"avatar,omitempty"`
	Balance *float64   `json:"balance,omitempty"`
	Role    model.Role `json:"role"`
}

// UserResponse is returned by GET /api/user.
type UserResponse struct {
	Avatar       string     `json:"avatar,omitempty"`
	Name         string     `json:"name,omitempty"`
	Balance      *float64   `json:"balance,omitempty"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	Role         model.Role `json:"role"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Avatar    string    `json:"avatar"`
	Stats     []float64 `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error          string   `json:"error"`
	Message        string   `json:"message,omitempty"`
	Required       []string `json:"required,omitempty"`
	CurrentBalance *float64 `json:"currentBalance,omitempty"`
}

// ToAccountBalanceResponse builds the balance view of an identity.
func ToAccountBalanceResponse(id *model.Identity) *AccountBalanceResponse {
	resp := &AccountBalanceResponse{Role: id.Role}
	if id.User != nil {
		balance := id.User.Balance
		resp.Avatar = id.User.Avatar
		resp.Balance = &balance
	}
	return resp
}

// ToUserResponse builds the profile view of an identity.
func ToUserResponse(id *model.Identity) *UserResponse {
	resp := &UserResponse{Role: id.Role}
	if u := id.User; u != nil {
		balance := u.Balance
		registeredAt := u.RegisteredAt
		lastLogin := u.LastLogin
		resp.Avatar = u.Avatar
		resp.Name = u.Name
		resp.Balance = &balance
		resp.RegisteredAt = &registeredAt
		resp.LastLogin = &lastLogin
	}
	return resp
}
