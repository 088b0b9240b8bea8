package queue

import (
	"context"
	"sync"
	"time"

	"hookrelay/pkg/logger"
)

// Outcome is the handler's verdict for one claimed job.
type Outcome int

const (
	// OutcomeCompleted removes the job from the queue.
	OutcomeCompleted Outcome = iota
	// OutcomeRetry burns an attempt and re-queues after backoff, or
	// moves the job to the dead set when the budget is exhausted.
	OutcomeRetry
	// OutcomeSuppressed parks the job without burning an attempt
	// (destination circuit open).
	OutcomeSuppressed
	// OutcomeDiscard removes the job without a success (subscription
	// deleted or deactivated mid-flight).
	OutcomeDiscard
)

// Handler processes one claimed job. The worker guarantees attempts of
// a single job are sequential; different jobs for the same subscription
// may run concurrently across the pool.
type Handler interface {
	Handle(ctx context.Context, job *Job) (Outcome, string)
}

// Worker runs a bounded pool of goroutines over the queue plus a
// stalled-job reaper.
type Worker struct {
	queue           Queue
	handler         Handler
	log             *logger.Logger
	concurrency     int
	pollInterval    time.Duration
	reapInterval    time.Duration
	suppressedDelay time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

func NewWorker(q Queue, handler Handler, concurrency int, log *logger.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 16
	}
	return &Worker{
		queue:           q,
		handler:         handler,
		log:             log,
		concurrency:     concurrency,
		pollInterval:    200 * time.Millisecond,
		reapInterval:    30 * time.Second,
		suppressedDelay: 30 * time.Second,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the worker pool and the reaper loop.
func (w *Worker) Start() {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run()
	}
	w.wg.Add(1)
	go w.reap()
}

// Stop gracefully shuts down, waiting for in-flight jobs.
func (w *Worker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

// drain processes jobs until the queue is empty or the worker stops.
func (w *Worker) drain() {
	for {
		select {
		case <-w.stopChan:
			return
		default:
		}

		ctx := context.Background()
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Errorf("dequeue failed: %v", err)
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	outcome, cause := w.handler.Handle(ctx, job)

	var err error
	switch outcome {
	case OutcomeCompleted, OutcomeDiscard:
		err = w.queue.Complete(ctx, job)
	case OutcomeSuppressed:
		err = w.queue.Reschedule(ctx, job, w.suppressedDelay)
	case OutcomeRetry:
		var terminal bool
		terminal, err = w.queue.Fail(ctx, job, cause)
		if terminal {
			w.log.Warnf("job %s dead after %d attempts: %s", job.ID, job.Attempt, cause)
		}
	}
	if err != nil {
		// The lease keeps the job claimed; the reaper re-queues it.
		w.log.Errorf("job %s transition failed: %v", job.ID, err)
	}
}

func (w *Worker) reap() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			reaped, err := w.queue.ReapStalled(context.Background())
			if err != nil {
				w.log.Errorf("stalled reap failed: %v", err)
				continue
			}
			if len(reaped) > 0 {
				w.log.Warnf("re-queued %d stalled jobs", len(reaped))
			}
		}
	}
}
