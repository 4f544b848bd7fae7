package notifier

import (
	"context"

	"github.com/Freeeeeet/marketplace/internal/model"
)

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// StoreSink сохраняет in-app уведомления в БД
type StoreSink struct {
	store NotificationStore
}

func NewStoreSink(store NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Send(ctx context.Context, n model.Notification) error {
	return s.store.Create(ctx, &n)
}
