package services

import (
	"context"
	"testing"
	"time"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/queue"
	hookrelay_errors "hookrelay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func failedRecord(t *testing.T, repo *fakeDeliveryRepo, orgID uuid.UUID) delivery.Record {
	t.Helper()
	rec := &delivery.Record{
		ID:             uuid.New(),
		SubscriptionID: uuid.New(),
		OrganizationID: orgID,
		EventKind:      string(event.KindMessageReceived),
		BusinessKey:    "msg-1",
		Payload:        []byte(`{"messageId":"msg-1"}`),
		Status:         delivery.StatusFailed,
		Attempts:       5,
	}
	require.NoError(t, repo.Insert(context.Background(), rec))
	return *rec
}

func TestGetDeliveryOwnership(t *testing.T) {
	repo := newFakeDeliveryRepo()
	q := queue.NewMemory(queue.BackoffPolicy{Initial: time.Second}, time.Minute, queue.NewNotifier())
	svc := NewDeliveryService(repo, q, 5)

	orgID := uuid.New()
	rec := failedRecord(t, repo, orgID)

	got, err := svc.Get(context.Background(), orgID, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New(), rec.ID)
	require.ErrorIs(t, err, hookrelay_errors.ErrForbidden)

	_, err = svc.Get(context.Background(), orgID, uuid.New())
	require.ErrorIs(t, err, hookrelay_errors.ErrNotFound)
}

func TestRedeliver(t *testing.T) {
	repo := newFakeDeliveryRepo()
	q := queue.NewMemory(queue.BackoffPolicy{Initial: time.Second}, time.Minute, queue.NewNotifier())
	svc := NewDeliveryService(repo, q, 5)

	orgID := uuid.New()
	rec := failedRecord(t, repo, orgID)
	ctx := context.Background()

	require.NoError(t, svc.Redeliver(ctx, orgID, rec.ID))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, rec.ID, job.DeliveryID)
	require.Equal(t, rec.SubscriptionID, job.SubscriptionID)
	require.Equal(t, event.KindMessageReceived, job.Event.Kind)
	require.Equal(t, "msg-1", job.Event.Data["messageId"])
	require.Zero(t, job.Attempt, "redelivery starts with a fresh budget")
	require.Equal(t, 5, job.MaxAttempts)
}

func TestRedeliverRequiresFailedStatus(t *testing.T) {
	repo := newFakeDeliveryRepo()
	q := queue.NewMemory(queue.BackoffPolicy{Initial: time.Second}, time.Minute, queue.NewNotifier())
	svc := NewDeliveryService(repo, q, 5)

	orgID := uuid.New()
	rec := &delivery.Record{
		ID:             uuid.New(),
		SubscriptionID: uuid.New(),
		OrganizationID: orgID,
		EventKind:      string(event.KindMessageReceived),
		BusinessKey:    "msg-1",
		Payload:        []byte(`{}`),
		Status:         delivery.StatusSuccess,
	}
	require.NoError(t, repo.Insert(context.Background(), rec))

	err := svc.Redeliver(context.Background(), orgID, rec.ID)
	require.ErrorIs(t, err, hookrelay_errors.ErrConflict)
}

func TestRedeliverOwnership(t *testing.T) {
	repo := newFakeDeliveryRepo()
	q := queue.NewMemory(queue.BackoffPolicy{Initial: time.Second}, time.Minute, queue.NewNotifier())
	svc := NewDeliveryService(repo, q, 5)

	rec := failedRecord(t, repo, uuid.New())
	err := svc.Redeliver(context.Background(), uuid.New(), rec.ID)
	require.ErrorIs(t, err, hookrelay_errors.ErrForbidden)
}
