package repository

import (
	"context"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, s *subscription.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (subscription.Subscription, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]subscription.Subscription, int64, error)
	Update(ctx context.Context, s subscription.Subscription) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListActive resolves the fan-out set for one event: active
	// subscriptions of the organization whose event filter contains kind.
	ListActive(ctx context.Context, orgID uuid.UUID, kind event.Kind) ([]subscription.Subscription, error)
}

type DeliveryRepository interface {
	Insert(ctx context.Context, rec *delivery.Record) error
	Update(ctx context.Context, id uuid.UUID, upd delivery.AttemptUpdate) error
	GetByID(ctx context.Context, id uuid.UUID) (delivery.Record, error)
	ListBySubscription(ctx context.Context, orgID, subscriptionID uuid.UUID, page, limit int) ([]delivery.Record, int64, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]delivery.Record, int64, error)
}
