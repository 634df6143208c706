package service

import (
	"errors"
	"fmt"
	"strings"
)

// Service errors.
var (
	ErrAvatarRequired    = errors.New("avatar is required")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidStats      = errors.New("invalid stats value")
	ErrUnauthorized      = errors.New("unauthorized or user not found")
	ErrUserVanished      = errors.New("unable to update user balance")
	ErrStatsNotFound     = errors.New("stats not found")
	ErrKeyGeneration     = errors.New("failed to generate unique api key")
)

// MissingFieldsError reports that required inputs were absent.
type MissingFieldsError struct {
	Required []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Required, ", "))
}

// InsufficientBalanceError is returned when a debit exceeds the balance.
// NoAccount is set when the caller has no user record to debit.
type InsufficientBalanceError struct {
	Balance   float64
	NoAccount bool
}

func (e *InsufficientBalanceError) Error() string {
	if e.NoAccount {
		return "insufficient balance: no account"
	}
	return fmt.Sprintf("insufficient balance: %g", e.Balance)
}

func missing(required ...string) error {
	return &MissingFieldsError{Required: required}
}
