package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type LifecycleType string

const (
	LifecycleEnqueued  LifecycleType = "enqueued"
	LifecycleCompleted LifecycleType = "completed"
	LifecycleFailed    LifecycleType = "failed"
	LifecycleDead      LifecycleType = "dead"
	LifecycleStalled   LifecycleType = "stalled"
)

// LifecycleEvent describes one job state transition for observers (the
// ops feed). Delivery is best-effort: slow observers drop events.
type LifecycleEvent struct {
	Type           LifecycleType `json:"type"`
	JobID          string        `json:"job_id"`
	SubscriptionID uuid.UUID     `json:"subscription_id,omitempty"`
	DeliveryID     uuid.UUID     `json:"delivery_id,omitempty"`
	Attempt        int           `json:"attempt"`
	Cause          string        `json:"cause,omitempty"`
	At             time.Time     `json:"at"`
}

// Notifier fans lifecycle events out to subscribers without ever
// blocking the queue.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan LifecycleEvent
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan LifecycleEvent)}
}

// Subscribe returns a buffered event channel and a cancel function.
func (n *Notifier) Subscribe() (<-chan LifecycleEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan LifecycleEvent, 64)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (n *Notifier) Publish(ev LifecycleEvent) {
	if n == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func jobEvent(t LifecycleType, job *Job, cause string) LifecycleEvent {
	return LifecycleEvent{
		Type:           t,
		JobID:          job.ID,
		SubscriptionID: job.SubscriptionID,
		DeliveryID:     job.DeliveryID,
		Attempt:        job.Attempt,
		Cause:          cause,
	}
}
