package queue

import (
	"time"

	"hookrelay/internal/domain/event"

	"github.com/google/uuid"
)

// Job is one delivery unit: a single event bound for a single
// subscription. The queue owns it from enqueue until a worker claims
// it; retries of the same job are strictly sequential.
type Job struct {
	ID             string      `json:"id"`
	SubscriptionID uuid.UUID   `json:"subscription_id"`
	DeliveryID     uuid.UUID   `json:"delivery_id"`
	Event          event.Event `json:"event"`
	Attempt        int         `json:"attempt"`
	MaxAttempts    int         `json:"max_attempts"`
	LastError      string      `json:"last_error,omitempty"`
	EnqueuedAt     time.Time   `json:"enqueued_at"`
}

func NewJob(subscriptionID, deliveryID uuid.UUID, ev event.Event, maxAttempts int) *Job {
	return &Job{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		DeliveryID:     deliveryID,
		Event:          ev,
		MaxAttempts:    maxAttempts,
		EnqueuedAt:     time.Now().UTC(),
	}
}

// Terminal reports whether the job has no retry budget left.
func (j *Job) Terminal() bool {
	return j.Attempt >= j.MaxAttempts
}
