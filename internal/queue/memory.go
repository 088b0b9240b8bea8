package queue

import (
	"context"
	"sync"
	"time"
)

type delayedJob struct {
	job     *Job
	readyAt time.Time
}

type activeJob struct {
	job         *Job
	leaseExpiry time.Time
}

// Memory is an in-process Queue for tests and single-node runs. The
// shared deployment uses the Redis implementation in internal/redis.
type Memory struct {
	backoff  BackoffPolicy
	lease    time.Duration
	notifier *Notifier
	clock    func() time.Time

	mu      sync.Mutex
	waiting []*Job
	delayed []delayedJob
	active  map[string]activeJob
	dead    map[string]*Job
}

func NewMemory(backoff BackoffPolicy, lease time.Duration, notifier *Notifier) *Memory {
	if lease <= 0 {
		lease = time.Minute
	}
	return &Memory{
		backoff:  backoff,
		lease:    lease,
		notifier: notifier,
		clock:    time.Now,
		active:   make(map[string]activeJob),
		dead:     make(map[string]*Job),
	}
}

// SetClock overrides the time source. Tests only.
func (m *Memory) SetClock(clock func() time.Time) {
	m.clock = clock
}

func (m *Memory) Enqueue(ctx context.Context, job *Job) error {
	m.mu.Lock()
	m.waiting = append(m.waiting, job)
	m.mu.Unlock()
	m.notifier.Publish(jobEvent(LifecycleEnqueued, job, ""))
	return nil
}

func (m *Memory) Dequeue(ctx context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.promoteLocked(now)

	if len(m.waiting) == 0 {
		return nil, nil
	}
	job := m.waiting[0]
	m.waiting = m.waiting[1:]
	m.active[job.ID] = activeJob{job: job, leaseExpiry: now.Add(m.lease)}
	return job, nil
}

func (m *Memory) promoteLocked(now time.Time) {
	var remaining []delayedJob
	for _, d := range m.delayed {
		if !d.readyAt.After(now) {
			m.waiting = append(m.waiting, d.job)
		} else {
			remaining = append(remaining, d)
		}
	}
	m.delayed = remaining
}

func (m *Memory) Complete(ctx context.Context, job *Job) error {
	m.mu.Lock()
	delete(m.active, job.ID)
	m.mu.Unlock()
	m.notifier.Publish(jobEvent(LifecycleCompleted, job, ""))
	return nil
}

func (m *Memory) Fail(ctx context.Context, job *Job, cause string) (bool, error) {
	m.mu.Lock()
	delete(m.active, job.ID)
	job.Attempt++
	job.LastError = cause

	if job.Terminal() {
		m.dead[job.ID] = job
		m.mu.Unlock()
		m.notifier.Publish(jobEvent(LifecycleDead, job, cause))
		return true, nil
	}

	delay := m.backoff.Delay(job.Attempt)
	m.delayed = append(m.delayed, delayedJob{job: job, readyAt: m.clock().Add(delay)})
	m.mu.Unlock()
	m.notifier.Publish(jobEvent(LifecycleFailed, job, cause))
	return false, nil
}

func (m *Memory) Reschedule(ctx context.Context, job *Job, delay time.Duration) error {
	m.mu.Lock()
	delete(m.active, job.ID)
	m.delayed = append(m.delayed, delayedJob{job: job, readyAt: m.clock().Add(delay)})
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReapStalled(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	now := m.clock()
	var reaped []string
	var stalled []*Job
	for id, a := range m.active {
		if a.leaseExpiry.Before(now) {
			delete(m.active, id)
			m.waiting = append(m.waiting, a.job)
			reaped = append(reaped, id)
			stalled = append(stalled, a.job)
		}
	}
	m.mu.Unlock()

	for _, job := range stalled {
		m.notifier.Publish(jobEvent(LifecycleStalled, job, "lease expired"))
	}
	return reaped, nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Waiting: int64(len(m.waiting)),
		Delayed: int64(len(m.delayed)),
		Active:  int64(len(m.active)),
		Dead:    int64(len(m.dead)),
	}, nil
}
