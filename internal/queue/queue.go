// Package queue provides the durable delivery job queue and its worker
// pool: bounded concurrency, exponential backoff, per-job leases with a
// stalled-job reaper, and job lifecycle notifications.
package queue

import (
	"context"
	"time"
)

// Retention windows. Dead jobs stay inspectable for a week; completed
// job ids are pruned aggressively to bound storage growth.
const (
	DeadRetention      = 7 * 24 * time.Hour
	CompletedRetention = time.Hour
)

// Stats is a point-in-time census of the queue, used by the ops surface.
type Stats struct {
	Waiting int64 `json:"waiting"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
	Dead    int64 `json:"dead"`
}

// Queue is the durable job store. Implementations must keep every
// transition atomic: two workers may poll concurrently but a job is
// claimed by at most one of them until its lease expires.
type Queue interface {
	// Enqueue stores the job and makes it eligible for dequeue.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue claims the next ready job under a lease, promoting due
	// delayed jobs first. Returns nil when nothing is ready.
	Dequeue(ctx context.Context) (*Job, error)

	// Complete releases a claimed job as successfully processed.
	Complete(ctx context.Context, job *Job) error

	// Fail burns one attempt. The job is re-queued after backoff, or
	// moved to the dead set once its budget is exhausted. Returns true
	// when the failure was terminal.
	Fail(ctx context.Context, job *Job, cause string) (bool, error)

	// Reschedule re-queues a claimed job after delay without burning an
	// attempt. Used when the destination circuit is open.
	Reschedule(ctx context.Context, job *Job, delay time.Duration) error

	// ReapStalled re-queues jobs whose lease expired without completion.
	ReapStalled(ctx context.Context) ([]string, error)

	// Stats reports queue depths.
	Stats(ctx context.Context) (Stats, error)
}

// BackoffPolicy computes the retry delay after a given attempt count:
// exponential, starting at Initial and doubling, capped at Max.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p BackoffPolicy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 5 * time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 10 * time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}
