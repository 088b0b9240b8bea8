package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/repository"

	"github.com/google/uuid"
)

const snippetLimit = 1000

// AttemptOutcome classifies one HTTP delivery attempt. Any non-2xx
// status, timeout or connection error is retryable; only an exhausted
// retry budget makes a failure terminal.
type AttemptOutcome struct {
	Success         bool
	ResponseStatus  int
	ResponseSnippet string
}

// Executor performs the outbound HTTP call and keeps the delivery
// record consistent on every attempt, success or failure.
type Executor struct {
	client     *http.Client
	deliveries repository.DeliveryRepository
	timeout    time.Duration
}

func NewExecutor(deliveries repository.DeliveryRepository, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Executor{
		client:     &http.Client{Timeout: timeout},
		deliveries: deliveries,
		timeout:    timeout,
	}
}

// Attempt executes one delivery attempt and records it. The record
// write happens before the outcome is returned so the audit trail stays
// consistent even if the process dies right after. A failed record
// write is returned as an error: the job itself must be retried.
func (x *Executor) Attempt(ctx context.Context, deliveryID uuid.UUID, req *EncodedRequest, attempt int, final bool) (AttemptOutcome, error) {
	outcome := x.Do(ctx, req)

	status := delivery.StatusPending
	if outcome.Success {
		status = delivery.StatusSuccess
	} else if final {
		status = delivery.StatusFailed
	}

	err := x.deliveries.Update(ctx, deliveryID, delivery.AttemptUpdate{
		Status:          status,
		Attempts:        attempt,
		LastAttemptAt:   time.Now().UTC(),
		ResponseStatus:  outcome.ResponseStatus,
		ResponseSnippet: outcome.ResponseSnippet,
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Do issues the raw HTTP call with a bounded, cancellable request and
// classifies the result. Used by Attempt and by the synchronous test
// endpoint, which reports the raw result without touching the queue.
func (x *Executor) Do(ctx context.Context, req *EncodedRequest) AttemptOutcome {
	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, req.URL, bodyReader)
	if err != nil {
		return AttemptOutcome{ResponseSnippet: truncate(err.Error())}
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := x.client.Do(httpReq)
	if err != nil {
		// Timeouts and connection errors: retryable, message captured
		// for diagnostics.
		return AttemptOutcome{ResponseSnippet: truncate(err.Error())}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	return AttemptOutcome{
		Success:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		ResponseStatus:  resp.StatusCode,
		ResponseSnippet: string(snippet),
	}
}

func truncate(s string) string {
	if len(s) > snippetLimit {
		return s[:snippetLimit]
	}
	return s
}
