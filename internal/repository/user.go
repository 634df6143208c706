package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/store"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrAvatarExists = errors.New("avatar already registered")
	ErrAPIKeyExists = errors.New("api key already assigned")
	ErrUnknownField = errors.New("unknown user field")
)

// Field names the user attribute a lookup matches on.
// Avatar is a public id and APIKey a secret; callers must pick one explicitly.
type Field string

// Lookup fields.
const (
	FieldAvatar Field = "avatar"
	FieldAPIKey Field = "apiKey"
)

func (f Field) valueOf(u *model.User) (string, error) {
	switch f {
	case FieldAvatar:
		return u.Avatar, nil
	case FieldAPIKey:
		return u.APIKey, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
}

// ListUsers loads the whole user collection.
// A null entry makes the document malformed.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := r.store.Load(ctx, store.Users, &users); err != nil {
		return nil, err
	}
	for i, u := range users {
		if u == nil {
			return nil, fmt.Errorf("%w: load %s: null entry at index %d", store.ErrStorage, store.Users, i)
		}
	}
	return users, nil
}

// FindUserBy returns the first user whose field equals value exactly.
// An empty value never matches.
func (r *Repository) FindUserBy(ctx context.Context, field Field, value string) (*model.User, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := findIndex(users, field, value)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	return users[idx], nil
}

// CreateUser appends user to the collection.
// Avatar and API key uniqueness is checked against the loaded collection.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return r.locker.With(store.Users, func() error {
		users, err := r.ListUsers(ctx)
		if err != nil {
			return err
		}

		for _, u := range users {
			if u.Avatar == user.Avatar {
				return ErrAvatarExists
			}
			if u.APIKey == user.APIKey {
				return ErrAPIKeyExists
			}
		}

		users = append(users, user)
		return r.store.Save(ctx, store.Users, users)
	})
}

// UpdateUser loads the collection, applies fn to the first user matching
// field and saves the whole collection. If fn returns an error nothing is
// written. Returns ErrUserNotFound when no record matches at write time.
func (r *Repository) UpdateUser(ctx context.Context, field Field, value string, fn func(u *model.User) error) (*model.User, error) {
	var updated *model.User

	err := r.locker.With(store.Users, func() error {
		users, err := r.ListUsers(ctx)
		if err != nil {
			return err
		}

		idx, err := findIndex(users, field, value)
		if err != nil {
			return err
		}
		if idx < 0 {
			return ErrUserNotFound
		}

		if err := fn(users[idx]); err != nil {
			return err
		}
		if err := r.store.Save(ctx, store.Users, users); err != nil {
			return err
		}

		updated = users[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func findIndex(users []*model.User, field Field, value string) (int, error) {
	if _, err := field.valueOf(&model.User{}); err != nil {
		return -1, err
	}
	if value == "" {
		return -1, nil
	}

	for i, u := range users {
		v, _ := field.valueOf(u)
		if v == value {
			return i, nil
		}
	}
	return -1, nil
}
