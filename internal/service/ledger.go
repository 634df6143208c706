// Package service provides business logic for the application.
package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/metrics"
	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/repository"
)

// DefaultReason is recorded when a spend carries no reason.
const DefaultReason = "N/A"

const maxKeyRetries = 3

// DeliveryPublisher forwards appended deliveries to downstream consumers.
type DeliveryPublisher interface {
	PublishDelivery(d *model.Delivery)
}

// Options configures a Ledger.
type Options struct {
	RegistrationBonus float64
	Metrics           metrics.Recorder
	Publisher         DeliveryPublisher

	// Now and NewKey are overridable for tests.
	Now    func() time.Time
	NewKey func() (string, error)
}

// Ledger applies balance mutations and log appends over the repository.
type Ledger struct {
	repo      *repository.Repository
	bonus     float64
	metrics   metrics.Recorder
	publisher DeliveryPublisher
	now       func() time.Time
	newKey    func() (string, error)
}

// NewLedger creates a new Ledger.
func NewLedger(repo *repository.Repository, opts Options) *Ledger {
	l := &Ledger{
		repo:      repo,
		bonus:     opts.RegistrationBonus,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		now:       opts.Now,
		newKey:    opts.NewKey,
	}
	if l.metrics == nil {
		l.metrics = metrics.NewNoop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newKey == nil {
		l.newKey = auth.GenerateAPIKey
	}
	return l
}

// RegistrationBonus returns the balance granted to new accounts.
func (l *Ledger) RegistrationBonus() float64 {
	return l.bonus
}

// Register creates an account for avatar with a fresh API key.
func (l *Ledger) Register(ctx context.Context, avatar, name string) (*model.User, error) {
	if avatar == "" {
		return nil, ErrAvatarRequired
	}
	if name == "" {
		name = model.DefaultUserName
	}

	if _, err := l.repo.FindUserBy(ctx, repository.FieldAvatar, avatar); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxKeyRetries; attempt++ {
		key, err := l.newKey()
		if err != nil {
			return nil, fmt.Errorf("generate api key: %w", err)
		}

		now := l.now().UTC()
		user := &model.User{
			Avatar:       avatar,
			Name:         name,
			APIKey:       key,
			RegisteredAt: now,
			Balance:      l.bonus,
			LastLogin:    now,
		}

		err = l.repo.CreateUser(ctx, user)
		switch {
		case err == nil:
			l.metrics.IncRegistration()
			return user, nil
		case errors.Is(err, repository.ErrAvatarExists):
			return nil, ErrAlreadyRegistered
		case errors.Is(err, repository.ErrAPIKeyExists):
			continue
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}

	return nil, ErrKeyGeneration
}

// CreditInput carries a machine interaction.
type CreditInput struct {
	APIKey string
	Avatar string
	// Amount is the raw JSON value; numbers and numeric strings are accepted.
	Amount json.RawMessage

	// NonStringKey marks a truthy key that was not a JSON string.
	// It counts as present and never matches.
	NonStringKey bool
}

// Credit adds a positive amount to avatar's balance after checking that
// APIKey belongs to that avatar. The master key is not accepted here.
func (l *Ledger) Credit(ctx context.Context, input CreditInput) (float64, error) {
	keyAbsent := input.APIKey == "" && !input.NonStringKey
	if keyAbsent || input.Avatar == "" || IsFalsy(input.Amount) {
		return 0, missing("apiKey", "avatarKey", "energia")
	}

	user, err := l.repo.FindUserBy(ctx, repository.FieldAvatar, input.Avatar)
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, ErrUnauthorized
	}
	if err != nil {
		return 0, err
	}
	if input.NonStringKey || user.APIKey != input.APIKey {
		return 0, ErrUnauthorized
	}

	amount, err := ParseLenientAmount(input.Amount)
	if err != nil {
		return 0, err
	}

	updated, err := l.repo.UpdateUser(ctx, repository.FieldAvatar, input.Avatar, func(u *model.User) error {
		u.Balance += amount
		u.Touch(l.now())
		return nil
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, ErrUserVanished
	}
	if err != nil {
		return 0, err
	}

	l.metrics.ObserveCredit(amount)
	return updated.Balance, nil
}

// DebitResult describes a successful spend.
type DebitResult struct {
	Spent      float64
	NewBalance float64
	Reason     string
}

// Debit subtracts amount from the caller's balance.
// Identities without an account always have insufficient balance.
func (l *Ledger) Debit(ctx context.Context, id *model.Identity, amount float64, reason string) (*DebitResult, error) {
	if !isPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		reason = DefaultReason
	}
	if id == nil || !id.HasAccount() {
		l.metrics.IncInsufficientBalance()
		return nil, &InsufficientBalanceError{NoAccount: true}
	}

	updated, err := l.repo.UpdateUser(ctx, repository.FieldAPIKey, id.User.APIKey, func(u *model.User) error {
		if !u.CanAfford(amount) {
			return &InsufficientBalanceError{Balance: u.Balance}
		}
		u.Balance -= amount
		u.Touch(l.now())
		return nil
	})

	var insufficient *InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		l.metrics.IncInsufficientBalance()
		return nil, err
	case errors.Is(err, repository.ErrUserNotFound):
		l.metrics.IncInsufficientBalance()
		return nil, &InsufficientBalanceError{NoAccount: true}
	case err != nil:
		return nil, err
	}

	l.metrics.ObserveDebit(amount)
	return &DebitResult{
		Spent:      amount,
		NewBalance: updated.Balance,
		Reason:     reason,
	}, nil
}

// SaveStats replaces avatar's stats entry with the parsed comma-separated values.
func (l *Ledger) SaveStats(ctx context.Context, avatar, key, raw string) error {
	if avatar == "" || key == "" || raw == "" {
		return missing("uuid", "key", "stats")
	}

	user, err := l.repo.FindUserBy(ctx, repository.FieldAvatar, avatar)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if user.APIKey != key {
		return ErrUnauthorized
	}

	values, err := ParseStats(raw)
	if err != nil {
		return err
	}

	entry := model.StatsEntry{
		Stats:     values,
		Timestamp: l.now().UTC(),
	}
	if err := l.repo.UpsertStats(ctx, avatar, entry); err != nil {
		return err
	}

	l.metrics.IncStatsSaved()
	return nil
}

// Stats returns avatar's latest stats entry.
func (l *Ledger) Stats(ctx context.Context, avatar string) (*model.StatsEntry, error) {
	entry, err := l.repo.GetStats(ctx, avatar)
	if errors.Is(err, repository.ErrStatsNotFound) {
		return nil, ErrStatsNotFound
	}
	return entry, err
}

// DeliverInput carries a delivery request.
type DeliverInput struct {
	Item   string
	Avatar string
}

// Deliver appends a delivery record processed by id. Balances are untouched.
func (l *Ledger) Deliver(ctx context.Context, id *model.Identity, input DeliverInput) (*model.Delivery, error) {
	if input.Item == "" || input.Avatar == "" {
		return nil, missing("item", "avatar")
	}

	now := l.now().UTC()
	d := &model.Delivery{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Timestamp:   now,
		Item:        input.Item,
		Avatar:      input.Avatar,
		ProcessedBy: model.ProcessorSystem,
	}
	if id != nil {
		d.APIKeyUsed = id.Key
		d.ProcessedBy = id.ProcessedBy()
	}

	if err := l.repo.AppendDelivery(ctx, d); err != nil {
		return nil, err
	}

	l.metrics.IncDelivery()
	if l.publisher != nil {
		l.publisher.PublishDelivery(d)
	}
	return d, nil
}

// ParseLenientAmount accepts a JSON number or a numeric string and
// requires a finite value greater than zero.
func ParseLenientAmount(raw json.RawMessage) (float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, ErrInvalidAmount
	}

	var amount float64
	switch t := v.(type) {
	case float64:
		amount = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		amount = f
	default:
		return 0, ErrInvalidAmount
	}

	if !isPositive(amount) {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// ParseStrictAmount requires a JSON number greater than zero.
// Numeric strings are rejected.
func ParseStrictAmount(raw json.RawMessage) (float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, ErrInvalidAmount
	}
	amount, ok := v.(float64)
	if !ok || !isPositive(amount) {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// ParseStats splits a comma-separated sequence into floats.
func ParseStats(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStats, p)
		}
		values = append(values, f)
	}
	return values, nil
}

// IsFalsy reports whether a raw JSON value is absent, null, false, zero or "".
func IsFalsy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`:
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
		return true
	}
	return false
}

func isPositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1) && !math.IsNaN(f)
}
