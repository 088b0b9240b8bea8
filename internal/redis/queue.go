package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hookrelay/internal/queue"

	goredis "github.com/redis/go-redis/v9"
)

// Queue key patterns:
// - wq:waiting           - list of ready job ids
// - wq:delayed           - zset, score = ready-at (ms)
// - wq:active            - zset, score = lease expiry (ms)
// - wq:dead              - zset, score = death time (ms), pruned after 7d
// - wq:completed         - zset, score = completion time (ms), pruned after 1h
// - wq:job:{id}          - job payload JSON

const (
	keyWaiting   = "wq:waiting"
	keyDelayed   = "wq:delayed"
	keyActive    = "wq:active"
	keyDead      = "wq:dead"
	keyCompleted = "wq:completed"
	jobKeyPrefix = "wq:job:"
)

// dequeueScript promotes due delayed jobs, claims the next waiting job
// under a lease and returns its payload. The promote+claim runs as one
// script so two workers can never claim the same job.
var dequeueScript = goredis.NewScript(`
	local waiting = KEYS[1]
	local delayed = KEYS[2]
	local active = KEYS[3]
	local now = ARGV[1]
	local leaseExpiry = ARGV[2]
	local jobPrefix = ARGV[3]

	local due = redis.call('ZRANGEBYSCORE', delayed, '-inf', now, 'LIMIT', 0, 100)
	for _, id in ipairs(due) do
		redis.call('ZREM', delayed, id)
		redis.call('RPUSH', waiting, id)
	end

	local id = redis.call('RPOP', waiting)
	if not id then
		return false
	end

	local payload = redis.call('GET', jobPrefix .. id)
	if not payload then
		return false
	end

	redis.call('ZADD', active, leaseExpiry, id)
	return payload
`)

// reapScript re-queues jobs whose lease expired without completion.
var reapScript = goredis.NewScript(`
	local active = KEYS[1]
	local waiting = KEYS[2]
	local now = ARGV[1]

	local expired = redis.call('ZRANGEBYSCORE', active, '-inf', now, 'LIMIT', 0, 100)
	for _, id in ipairs(expired) do
		redis.call('ZREM', active, id)
		redis.call('LPUSH', waiting, id)
	end
	return expired
`)

// Queue is the Redis-backed delivery job queue. Jobs survive process
// restarts; only Redis loss drops them, and the Postgres delivery
// records keep the audit trail either way.
type Queue struct {
	client   *goredis.Client
	backoff  queue.BackoffPolicy
	lease    time.Duration
	notifier *queue.Notifier
}

func NewQueue(client *goredis.Client, backoff queue.BackoffPolicy, lease time.Duration, notifier *queue.Notifier) *Queue {
	if lease <= 0 {
		lease = time.Minute
	}
	return &Queue{client: client, backoff: backoff, lease: lease, notifier: notifier}
}

func (q *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), payload, 0)
	pipe.LPush(ctx, keyWaiting, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	q.notifier.Publish(queue.LifecycleEvent{
		Type:           queue.LifecycleEnqueued,
		JobID:          job.ID,
		SubscriptionID: job.SubscriptionID,
		DeliveryID:     job.DeliveryID,
		Attempt:        job.Attempt,
	})
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (*queue.Job, error) {
	now := time.Now()
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{keyWaiting, keyDelayed, keyActive},
		now.UnixMilli(),
		now.Add(q.lease).UnixMilli(),
		jobKeyPrefix,
	).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue failed: %w", err)
	}

	payload, ok := res.(string)
	if !ok {
		return nil, nil
	}
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, job *queue.Job) error {
	now := time.Now()
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	pipe.Del(ctx, jobKey(job.ID))
	pipe.ZAdd(ctx, keyCompleted, goredis.Z{Score: float64(now.UnixMilli()), Member: job.ID})
	pipe.ZRemRangeByScore(ctx, keyCompleted, "-inf",
		fmt.Sprintf("%d", now.Add(-queue.CompletedRetention).UnixMilli()))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete failed: %w", err)
	}

	q.notifier.Publish(queue.LifecycleEvent{
		Type:           queue.LifecycleCompleted,
		JobID:          job.ID,
		SubscriptionID: job.SubscriptionID,
		DeliveryID:     job.DeliveryID,
		Attempt:        job.Attempt,
	})
	return nil
}

func (q *Queue) Fail(ctx context.Context, job *queue.Job, cause string) (bool, error) {
	job.Attempt++
	job.LastError = cause
	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal job: %w", err)
	}

	now := time.Now()
	terminal := job.Terminal()

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	if terminal {
		pipe.Set(ctx, jobKey(job.ID), payload, queue.DeadRetention)
		pipe.ZAdd(ctx, keyDead, goredis.Z{Score: float64(now.UnixMilli()), Member: job.ID})
		pipe.ZRemRangeByScore(ctx, keyDead, "-inf",
			fmt.Sprintf("%d", now.Add(-queue.DeadRetention).UnixMilli()))
	} else {
		delay := q.backoff.Delay(job.Attempt)
		pipe.Set(ctx, jobKey(job.ID), payload, 0)
		pipe.ZAdd(ctx, keyDelayed, goredis.Z{Score: float64(now.Add(delay).UnixMilli()), Member: job.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("fail transition failed: %w", err)
	}

	lifecycle := queue.LifecycleFailed
	if terminal {
		lifecycle = queue.LifecycleDead
	}
	q.notifier.Publish(queue.LifecycleEvent{
		Type:           lifecycle,
		JobID:          job.ID,
		SubscriptionID: job.SubscriptionID,
		DeliveryID:     job.DeliveryID,
		Attempt:        job.Attempt,
		Cause:          cause,
	})
	return terminal, nil
}

func (q *Queue) Reschedule(ctx context.Context, job *queue.Job, delay time.Duration) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	pipe.ZAdd(ctx, keyDelayed, goredis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reschedule failed: %w", err)
	}
	return nil
}

func (q *Queue) ReapStalled(ctx context.Context) ([]string, error) {
	res, err := reapScript.Run(ctx, q.client,
		[]string{keyActive, keyWaiting},
		time.Now().UnixMilli(),
	).StringSlice()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("stalled reap failed: %w", err)
	}
	for _, id := range res {
		q.notifier.Publish(queue.LifecycleEvent{
			Type:  queue.LifecycleStalled,
			JobID: id,
			Cause: "lease expired",
		})
	}
	return res, nil
}

func (q *Queue) Stats(ctx context.Context) (queue.Stats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, keyWaiting)
	delayed := pipe.ZCard(ctx, keyDelayed)
	active := pipe.ZCard(ctx, keyActive)
	dead := pipe.ZCard(ctx, keyDead)
	if _, err := pipe.Exec(ctx); err != nil {
		return queue.Stats{}, fmt.Errorf("queue stats failed: %w", err)
	}
	return queue.Stats{
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
		Dead:    dead.Val(),
	}, nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
