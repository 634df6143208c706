package repository

import (
	"context"

	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/store"
)

// AppendDelivery adds a record to the end of the delivery log.
func (r *Repository) AppendDelivery(ctx context.Context, d *model.Delivery) error {
	return r.locker.With(store.Deliveries, func() error {
		deliveries, err := r.ListDeliveries(ctx)
		if err != nil {
			return err
		}
		deliveries = append(deliveries, d)
		return r.store.Save(ctx, store.Deliveries, deliveries)
	})
}

// ListDeliveries loads the whole delivery log in append order.
func (r *Repository) ListDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	var deliveries []*model.Delivery
	if err := r.store.Load(ctx, store.Deliveries, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}
