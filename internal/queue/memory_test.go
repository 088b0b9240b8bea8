package queue

import (
	"context"
	"testing"
	"time"

	"hookrelay/internal/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testEvent() event.Event {
	return event.Event{
		Kind:           event.KindMessageReceived,
		OrganizationID: uuid.New(),
		BusinessKey:    "msg-1",
		Data:           map[string]interface{}{"messageId": "msg-1"},
		OccurredAt:     time.Unix(1_700_000_000, 0).UTC(),
	}
}

func testQueue(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	q := NewMemory(BackoffPolicy{Initial: 5 * time.Second, Max: 10 * time.Minute}, time.Minute, NewNotifier())
	q.SetClock(func() time.Time { return now })
	return q, &now
}

func TestQueueFIFO(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	first := NewJob(uuid.New(), uuid.New(), testEvent(), 5)
	second := NewJob(uuid.New(), uuid.New(), testEvent(), 5)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestQueueRetryAfterBackoff(t *testing.T) {
	q, now := testQueue(t)
	ctx := context.Background()

	job := NewJob(uuid.New(), uuid.New(), testEvent(), 5)
	require.NoError(t, q.Enqueue(ctx, job))

	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	terminal, err := q.Fail(ctx, claimed, "http status 500")
	require.NoError(t, err)
	require.False(t, terminal)
	require.Equal(t, 1, claimed.Attempt)

	// Not ready before the backoff delay elapses.
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	*now = now.Add(6 * time.Second)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, "http status 500", got.LastError)
}

func TestQueueTerminalAtMaxAttempts(t *testing.T) {
	q, now := testQueue(t)
	ctx := context.Background()

	job := NewJob(uuid.New(), uuid.New(), testEvent(), 3)
	require.NoError(t, q.Enqueue(ctx, job))

	for attempt := 1; attempt <= 3; attempt++ {
		*now = now.Add(time.Hour)
		claimed, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d should be claimable", attempt)

		terminal, err := q.Fail(ctx, claimed, "boom")
		require.NoError(t, err)
		require.Equal(t, attempt == 3, terminal)
	}

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Dead)
	require.Equal(t, int64(0), stats.Waiting)
	require.Equal(t, int64(0), stats.Delayed)
}

func TestQueueRescheduleDoesNotBurnAttempt(t *testing.T) {
	q, now := testQueue(t)
	ctx := context.Background()

	job := NewJob(uuid.New(), uuid.New(), testEvent(), 5)
	require.NoError(t, q.Enqueue(ctx, job))

	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Reschedule(ctx, claimed, 30*time.Second))
	require.Equal(t, 0, claimed.Attempt)

	*now = now.Add(31 * time.Second)
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 0, got.Attempt)
}

func TestQueueReapStalled(t *testing.T) {
	q, now := testQueue(t)
	ctx := context.Background()

	job := NewJob(uuid.New(), uuid.New(), testEvent(), 5)
	require.NoError(t, q.Enqueue(ctx, job))

	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Lease still live: nothing to reap.
	reaped, err := q.ReapStalled(ctx)
	require.NoError(t, err)
	require.Empty(t, reaped)

	*now = now.Add(2 * time.Minute)
	reaped, err = q.ReapStalled(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, reaped)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, job.ID, got.ID)
}

func TestBackoffStrictlyIncreasingUntilCap(t *testing.T) {
	p := BackoffPolicy{Initial: 5 * time.Second, Max: 10 * time.Minute}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 7; attempt++ {
		d := p.Delay(attempt)
		require.Greater(t, d, prev, "delay must increase at attempt %d", attempt)
		prev = d
	}
	require.Equal(t, 10*time.Minute, p.Delay(20))
}

func TestNotifierLifecycle(t *testing.T) {
	n := NewNotifier()
	events, cancel := n.Subscribe()
	defer cancel()

	q := NewMemory(BackoffPolicy{Initial: time.Second}, time.Minute, n)
	ctx := context.Background()

	job := NewJob(uuid.New(), uuid.New(), testEvent(), 1)
	require.NoError(t, q.Enqueue(ctx, job))
	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	_, err = q.Fail(ctx, claimed, "boom")
	require.NoError(t, err)

	require.Equal(t, LifecycleEnqueued, (<-events).Type)
	dead := <-events
	require.Equal(t, LifecycleDead, dead.Type)
	require.Equal(t, job.ID, dead.JobID)
	require.Equal(t, "boom", dead.Cause)
}
