package repository

import (
	"context"
	"errors"

	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/store"
)

// ErrStatsNotFound indicates no stats entry exists for an avatar.
var ErrStatsNotFound = errors.New("stats not found")

// UpsertStats replaces the avatar's entry wholesale.
func (r *Repository) UpsertStats(ctx context.Context, avatar string, entry model.StatsEntry) error {
	return r.locker.With(store.Stats, func() error {
		book, err := r.loadStats(ctx)
		if err != nil {
			return err
		}
		book[avatar] = entry
		return r.store.Save(ctx, store.Stats, book)
	})
}

// GetStats returns the avatar's current entry.
func (r *Repository) GetStats(ctx context.Context, avatar string) (*model.StatsEntry, error) {
	book, err := r.loadStats(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := book[avatar]
	if !ok {
		return nil, ErrStatsNotFound
	}
	return &entry, nil
}

func (r *Repository) loadStats(ctx context.Context) (model.StatsBook, error) {
	var book model.StatsBook
	if err := r.store.Load(ctx, store.Stats, &book); err != nil {
		return nil, err
	}
	if book == nil {
		book = model.StatsBook{}
	}
	return book, nil
}
