package services

import (
	"context"
	"encoding/json"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/queue"
	"hookrelay/internal/repository"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
)

// DeliveryService exposes the delivery history read path and operator
// redelivery of dead letters.
type DeliveryService struct {
	deliveries  repository.DeliveryRepository
	queue       queue.Queue
	maxAttempts int
}

func NewDeliveryService(deliveries repository.DeliveryRepository, q queue.Queue, maxAttempts int) *DeliveryService {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &DeliveryService{deliveries: deliveries, queue: q, maxAttempts: maxAttempts}
}

func (s *DeliveryService) Get(ctx context.Context, orgID, id uuid.UUID) (delivery.Record, error) {
	rec, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return delivery.Record{}, err
	}
	if rec.OrganizationID != orgID {
		return delivery.Record{}, hookrelay_errors.ErrForbidden
	}
	return rec, nil
}

func (s *DeliveryService) ListBySubscription(ctx context.Context, orgID, subscriptionID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	return s.deliveries.ListBySubscription(ctx, orgID, subscriptionID, page, limit)
}

func (s *DeliveryService) ListByOrganization(ctx context.Context, orgID uuid.UUID, page, limit int) ([]delivery.Record, int64, error) {
	return s.deliveries.ListByOrganization(ctx, orgID, page, limit)
}

// Redeliver re-enqueues a terminal-failed delivery with a fresh retry
// budget, rebuilding the event from the record's payload snapshot.
func (s *DeliveryService) Redeliver(ctx context.Context, orgID, id uuid.UUID) error {
	rec, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if rec.Status != delivery.StatusFailed {
		return hookrelay_errors.ErrConflict
	}

	var data map[string]interface{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return err
	}
	ev := event.Event{
		Kind:           event.Kind(rec.EventKind),
		OrganizationID: rec.OrganizationID,
		BusinessKey:    rec.BusinessKey,
		Data:           data,
		OccurredAt:     rec.CreatedAt,
	}

	job := queue.NewJob(rec.SubscriptionID, rec.ID, ev, s.maxAttempts)
	return s.queue.Enqueue(ctx, job)
}
