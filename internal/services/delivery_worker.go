package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"hookrelay/internal/breaker"
	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/queue"
	"hookrelay/internal/repository"
	hookrelay_errors "hookrelay/pkg/errors"
	"hookrelay/pkg/logger"
)

// DeliveryHandler is the worker-side job handler: it encodes and
// executes one delivery attempt and feeds the result into the circuit
// breaker and the audit trail.
type DeliveryHandler struct {
	subscriptions repository.SubscriptionRepository
	deliveries    repository.DeliveryRepository
	encoder       *Encoder
	executor      *Executor
	breaker       breaker.Breaker
	log           *logger.Logger
}

func NewDeliveryHandler(
	subscriptions repository.SubscriptionRepository,
	deliveries repository.DeliveryRepository,
	encoder *Encoder,
	executor *Executor,
	brk breaker.Breaker,
	log *logger.Logger,
) *DeliveryHandler {
	return &DeliveryHandler{
		subscriptions: subscriptions,
		deliveries:    deliveries,
		encoder:       encoder,
		executor:      executor,
		breaker:       brk,
		log:           log,
	}
}

func (h *DeliveryHandler) Handle(ctx context.Context, job *queue.Job) (queue.Outcome, string) {
	sub, err := h.subscriptions.GetByID(ctx, job.SubscriptionID)
	if err != nil {
		if errors.Is(err, hookrelay_errors.ErrNotFound) {
			h.closeRecord(ctx, job)
			return queue.OutcomeDiscard, "subscription deleted"
		}
		return queue.OutcomeRetry, "subscription lookup failed: " + err.Error()
	}
	if !sub.Active {
		h.closeRecord(ctx, job)
		return queue.OutcomeDiscard, "subscription deactivated"
	}

	// Jobs enqueued just before the circuit opened are parked without
	// burning an attempt against a known-dead endpoint.
	open, err := h.breaker.IsOpen(ctx, sub.ID)
	if err != nil {
		h.log.Warnf("circuit check failed for subscription %s: %v", sub.ID, err)
	} else if open {
		return queue.OutcomeSuppressed, "circuit open"
	}

	req, err := h.encoder.Encode(&sub, job.Event, job.DeliveryID)
	if err != nil {
		h.closeRecord(ctx, job)
		return queue.OutcomeDiscard, "encode failed: " + err.Error()
	}

	attempt := job.Attempt + 1
	final := attempt >= job.MaxAttempts
	outcome, err := h.executor.Attempt(ctx, job.DeliveryID, req, attempt, final)
	if err != nil {
		// The attempt happened but the record write did not: the job
		// must not be dropped silently, so the write failure is itself
		// a retryable failure of the job.
		return queue.OutcomeRetry, "record update failed: " + err.Error()
	}

	if err := h.breaker.RecordOutcome(ctx, sub.ID, outcome.Success); err != nil {
		h.log.Warnf("circuit update failed for subscription %s: %v", sub.ID, err)
	}

	if outcome.Success {
		return queue.OutcomeCompleted, ""
	}
	return queue.OutcomeRetry, retryCause(outcome)
}

// closeRecord marks the delivery failed when the job is discarded
// before an attempt could happen.
func (h *DeliveryHandler) closeRecord(ctx context.Context, job *queue.Job) {
	err := h.deliveries.Update(ctx, job.DeliveryID, delivery.AttemptUpdate{
		Status:        delivery.StatusFailed,
		Attempts:      job.Attempt,
		LastAttemptAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, hookrelay_errors.ErrNotFound) {
		h.log.Errorf("delivery record close failed for %s: %v", job.DeliveryID, err)
	}
}

func retryCause(outcome AttemptOutcome) string {
	if outcome.ResponseStatus > 0 {
		return "http status " + strconv.Itoa(outcome.ResponseStatus)
	}
	if outcome.ResponseSnippet != "" {
		return outcome.ResponseSnippet
	}
	return "delivery failed"
}
