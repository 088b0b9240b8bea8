package services

import (
	"context"
	"encoding/json"
	"time"

	"hookrelay/internal/breaker"
	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/event"
	"hookrelay/internal/queue"
	"hookrelay/internal/repository"
	"hookrelay/pkg/logger"

	"github.com/google/uuid"
)

// Deduplicator suppresses re-fan-out of a logical event within a
// cooldown window via an atomic check-and-set.
type Deduplicator interface {
	ShouldSuppress(ctx context.Context, orgID uuid.UUID, kind event.Kind, businessKey string) (bool, error)
}

// PublishResult tells the producer what happened, for logging only; a
// fan-out problem must never fail the triggering business operation.
type PublishResult struct {
	Suppressed bool `json:"suppressed"`
	Enqueued   int  `json:"enqueued"`
	Skipped    int  `json:"skipped"`
}

// Publisher is the producer-facing entry point. The publish path does
// cheap operations only (dedup check, subscription lookup, record
// insert, enqueue) and never blocks on outbound HTTP.
type Publisher struct {
	subscriptions repository.SubscriptionRepository
	deliveries    repository.DeliveryRepository
	dedup         Deduplicator
	breaker       breaker.Breaker
	queue         queue.Queue
	maxAttempts   int
	log           *logger.Logger
}

func NewPublisher(
	subscriptions repository.SubscriptionRepository,
	deliveries repository.DeliveryRepository,
	dedup Deduplicator,
	brk breaker.Breaker,
	q queue.Queue,
	maxAttempts int,
	log *logger.Logger,
) *Publisher {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &Publisher{
		subscriptions: subscriptions,
		deliveries:    deliveries,
		dedup:         dedup,
		breaker:       brk,
		queue:         q,
		maxAttempts:   maxAttempts,
		log:           log,
	}
}

// Publish fans the event out to every matching subscription: one
// delivery record and one queued job per destination whose circuit is
// not open. It returns once every job is enqueued or suppressed.
// Per-destination enqueue failures are logged, not returned; only a
// malformed event or a failed subscription lookup is an error.
func (p *Publisher) Publish(ctx context.Context, ev event.Event) (PublishResult, error) {
	if err := ev.Validate(); err != nil {
		return PublishResult{}, err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	suppress, err := p.dedup.ShouldSuppress(ctx, ev.OrganizationID, ev.Kind, ev.BusinessKey)
	if err != nil {
		// Dedup store down: deliver anyway. A duplicate beats a drop.
		p.log.Warnf("dedup check failed for %s/%s: %v", ev.Kind, ev.BusinessKey, err)
	} else if suppress {
		return PublishResult{Suppressed: true}, nil
	}

	subs, err := p.subscriptions.ListActive(ctx, ev.OrganizationID, ev.Kind)
	if err != nil {
		return PublishResult{}, err
	}

	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return PublishResult{}, err
	}

	var result PublishResult
	for i := range subs {
		sub := &subs[i]

		allowed, err := p.breaker.Allow(ctx, sub.ID)
		if err != nil {
			p.log.Warnf("circuit check failed for subscription %s: %v", sub.ID, err)
			allowed = true
		}
		if !allowed {
			result.Skipped++
			p.log.Debugf("circuit open, skipping subscription %s for %s", sub.ID, ev.Kind)
			continue
		}

		rec := &delivery.Record{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			OrganizationID: ev.OrganizationID,
			EventKind:      string(ev.Kind),
			BusinessKey:    ev.BusinessKey,
			Payload:        payload,
			Status:         delivery.StatusPending,
		}
		if err := p.deliveries.Insert(ctx, rec); err != nil {
			p.log.Errorf("delivery record insert failed for subscription %s: %v", sub.ID, err)
			result.Skipped++
			continue
		}

		job := queue.NewJob(sub.ID, rec.ID, ev, p.maxAttempts)
		if err := p.queue.Enqueue(ctx, job); err != nil {
			p.log.Errorf("enqueue failed for subscription %s: %v", sub.ID, err)
			result.Skipped++
			continue
		}
		result.Enqueued++
	}

	return result, nil
}
