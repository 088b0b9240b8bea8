package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hookrelay/internal/breaker"
	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"
	"hookrelay/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	handler *DeliveryHandler
	subs    *fakeSubscriptionRepo
	records *fakeDeliveryRepo
	breaker *breaker.Memory
}

func newHandlerFixture(t *testing.T, subs ...subscription.Subscription) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		subs:    newFakeSubscriptionRepo(subs...),
		records: newFakeDeliveryRepo(),
		breaker: breaker.NewMemory(breaker.DefaultConfig()),
	}
	f.handler = NewDeliveryHandler(
		f.subs,
		f.records,
		NewEncoder("whatsapp"),
		NewExecutor(f.records, time.Second),
		f.breaker,
		testLogger(),
	)
	return f
}

func (f *handlerFixture) seedJob(t *testing.T, sub subscription.Subscription, maxAttempts int) *queue.Job {
	t.Helper()
	ev := messageEvent()
	ev.OrganizationID = sub.OrganizationID
	rec := &delivery.Record{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		EventKind:      string(ev.Kind),
		BusinessKey:    ev.BusinessKey,
		Payload:        []byte(`{}`),
		Status:         delivery.StatusPending,
	}
	require.NoError(t, f.records.Insert(context.Background(), rec))
	return queue.NewJob(sub.ID, rec.ID, ev, maxAttempts)
}

func TestHandlerDeliversSuccessfully(t *testing.T) {
	var gotSignature, gotDelivery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotDelivery = r.Header.Get("X-Webhook-Delivery")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub := activeSub(uuid.New(), event.KindMessageReceived)
	sub.URL = srv.URL
	sub.Secret = "s3cr3t"
	f := newHandlerFixture(t, sub)
	job := f.seedJob(t, sub, 5)

	outcome, cause := f.handler.Handle(context.Background(), job)
	require.Equal(t, queue.OutcomeCompleted, outcome)
	require.Empty(t, cause)
	require.NotEmpty(t, gotSignature)
	require.Equal(t, job.DeliveryID.String(), gotDelivery)

	rec, err := f.records.GetByID(context.Background(), job.DeliveryID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusSuccess, rec.Status)
	require.Equal(t, 1, rec.Attempts)
}

func TestHandlerExhaustsRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sub := activeSub(uuid.New(), event.KindMessageReceived)
	sub.URL = srv.URL
	f := newHandlerFixture(t, sub)

	now := time.Unix(1_700_000_000, 0)
	q := queue.NewMemory(queue.BackoffPolicy{Initial: time.Second}, time.Minute, queue.NewNotifier())
	q.SetClock(func() time.Time { return now })

	ctx := context.Background()
	job := f.seedJob(t, sub, 5)
	require.NoError(t, q.Enqueue(ctx, job))

	var terminal bool
	for i := 0; i < 5; i++ {
		now = now.Add(time.Hour)
		claimed, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		outcome, cause := f.handler.Handle(ctx, claimed)
		require.Equal(t, queue.OutcomeRetry, outcome)
		require.Equal(t, "http status 500", cause)

		terminal, err = q.Fail(ctx, claimed, cause)
		require.NoError(t, err)
	}
	require.True(t, terminal)

	rec, err := f.records.GetByID(ctx, job.DeliveryID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusFailed, rec.Status)
	require.Equal(t, 5, rec.Attempts)
	require.Equal(t, http.StatusInternalServerError, rec.ResponseStatus)
	require.True(t, strings.Contains(rec.ResponseSnippet, "down"))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Dead)
}

func TestHandlerParksJobWhileCircuitOpen(t *testing.T) {
	sub := activeSub(uuid.New(), event.KindMessageReceived)
	f := newHandlerFixture(t, sub)

	ctx := context.Background()
	for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
		require.NoError(t, f.breaker.RecordOutcome(ctx, sub.ID, false))
	}

	job := f.seedJob(t, sub, 5)
	outcome, cause := f.handler.Handle(ctx, job)
	require.Equal(t, queue.OutcomeSuppressed, outcome)
	require.Equal(t, "circuit open", cause)

	// No attempt happened: the record is untouched.
	rec, err := f.records.GetByID(ctx, job.DeliveryID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusPending, rec.Status)
	require.Zero(t, rec.Attempts)
}

func TestHandlerDiscardsDeletedSubscription(t *testing.T) {
	sub := activeSub(uuid.New(), event.KindMessageReceived)
	f := newHandlerFixture(t, sub)
	job := f.seedJob(t, sub, 5)
	require.NoError(t, f.subs.Delete(context.Background(), sub.ID))

	outcome, cause := f.handler.Handle(context.Background(), job)
	require.Equal(t, queue.OutcomeDiscard, outcome)
	require.Equal(t, "subscription deleted", cause)

	rec, err := f.records.GetByID(context.Background(), job.DeliveryID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusFailed, rec.Status)
}

func TestHandlerDiscardsDeactivatedSubscription(t *testing.T) {
	sub := activeSub(uuid.New(), event.KindMessageReceived)
	sub.Active = false
	f := newHandlerFixture(t, sub)
	job := f.seedJob(t, sub, 5)

	outcome, cause := f.handler.Handle(context.Background(), job)
	require.Equal(t, queue.OutcomeDiscard, outcome)
	require.Equal(t, "subscription deactivated", cause)
}

func TestHandlerRetriesOnRecordWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub := activeSub(uuid.New(), event.KindMessageReceived)
	sub.URL = srv.URL
	f := newHandlerFixture(t, sub)
	job := f.seedJob(t, sub, 5)
	f.records.failUpdates = 1

	outcome, cause := f.handler.Handle(context.Background(), job)
	require.Equal(t, queue.OutcomeRetry, outcome)
	require.True(t, strings.HasPrefix(cause, "record update failed"))
}
