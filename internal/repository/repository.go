// Package repository provides collection access over the record store.
package repository

import (
	"context"

	"github.com/meeter/meeter/internal/store"
)

// Repository reads and rewrites whole documents through a Store.
// Mutations run as load-modify-save cycles; the Locker decides whether
// cycles on the same document are serialized.
type Repository struct {
	store  store.Store
	locker *store.Locker
}

// New creates a Repository. A nil locker disables serialization.
func New(s store.Store, locker *store.Locker) *Repository {
	if locker == nil {
		locker = store.NewLocker(false)
	}
	return &Repository{
		store:  s,
		locker: locker,
	}
}

// Ping checks store connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Store returns the underlying record store.
func (r *Repository) Store() store.Store {
	return r.store
}
