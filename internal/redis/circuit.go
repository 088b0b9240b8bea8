package redis

import (
	"context"
	"fmt"
	"time"

	"hookrelay/internal/breaker"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Circuit key pattern:
// - circuit:{subscription_id} - hash {state, failures, tier, open_until}, 24h TTL
//
// The state is advisory and rebuildable from delivery history, so a key
// expiry simply closes the circuit. Every transition runs as one Lua
// script: workers update the failure counter concurrently and a
// read-modify-write from Go would lose updates.

// allowScript is the publish-path gate. An open circuit whose cooldown
// elapsed moves to half_open and this caller wins the single probe.
var allowScript = goredis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])

	local state = redis.call('HGET', key, 'state')
	if not state or state == 'closed' then
		return 1
	end
	if state == 'open' then
		local openUntil = tonumber(redis.call('HGET', key, 'open_until')) or 0
		if now < openUntil then
			return 0
		end
		redis.call('HSET', key, 'state', 'half_open')
		redis.call('EXPIRE', key, 86400)
		return 1
	end
	return 0
`)

var isOpenScript = goredis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])

	local state = redis.call('HGET', key, 'state')
	if state == 'open' then
		local openUntil = tonumber(redis.call('HGET', key, 'open_until')) or 0
		if now < openUntil then
			return 1
		end
	end
	return 0
`)

// outcomeScript feeds one delivery result back. ARGV[4..] is the
// cooldown schedule in milliseconds, one entry per escalation tier.
var outcomeScript = goredis.NewScript(`
	local key = KEYS[1]
	local success = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local threshold = tonumber(ARGV[3])

	if success == 1 then
		redis.call('DEL', key)
		return 'closed'
	end

	local state = redis.call('HGET', key, 'state')
	if not state then
		state = 'closed'
	end
	local tier = tonumber(redis.call('HGET', key, 'tier')) or 0
	local maxTier = #ARGV - 4

	if state == 'half_open' then
		if tier < maxTier then
			tier = tier + 1
		end
		local cooldown = tonumber(ARGV[4 + tier])
		redis.call('HSET', key, 'state', 'open', 'tier', tier, 'open_until', now + cooldown, 'failures', threshold)
		redis.call('EXPIRE', key, 86400)
		return 'open'
	end

	local failures = redis.call('HINCRBY', key, 'failures', 1)
	if state == 'closed' and failures >= threshold then
		local cooldown = tonumber(ARGV[4 + tier])
		redis.call('HSET', key, 'state', 'open', 'open_until', now + cooldown)
		state = 'open'
	end
	redis.call('EXPIRE', key, 86400)
	return state
`)

// CircuitBreaker is the Redis-backed breaker shared by all workers.
type CircuitBreaker struct {
	client *goredis.Client
	config breaker.Config
}

func NewCircuitBreaker(client *goredis.Client, config breaker.Config) *CircuitBreaker {
	return &CircuitBreaker{client: client, config: config}
}

func (b *CircuitBreaker) Allow(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	res, err := allowScript.Run(ctx, b.client, []string{circuitKey(subscriptionID)},
		time.Now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("circuit allow failed: %w", err)
	}
	return res == 1, nil
}

func (b *CircuitBreaker) IsOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	res, err := isOpenScript.Run(ctx, b.client, []string{circuitKey(subscriptionID)},
		time.Now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("circuit check failed: %w", err)
	}
	return res == 1, nil
}

func (b *CircuitBreaker) RecordOutcome(ctx context.Context, subscriptionID uuid.UUID, success bool) error {
	successArg := 0
	if success {
		successArg = 1
	}
	args := []interface{}{successArg, time.Now().UnixMilli(), b.config.FailureThreshold}
	for _, cooldown := range b.config.Cooldowns {
		args = append(args, cooldown.Milliseconds())
	}
	if err := outcomeScript.Run(ctx, b.client, []string{circuitKey(subscriptionID)}, args...).Err(); err != nil {
		return fmt.Errorf("circuit outcome failed: %w", err)
	}
	return nil
}

func circuitKey(subscriptionID uuid.UUID) string {
	return fmt.Sprintf("circuit:%s", subscriptionID.String())
}
