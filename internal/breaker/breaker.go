// Package breaker implements the per-subscription circuit breaker that
// keeps chronically failing endpoints from consuming worker capacity.
package breaker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// Cooldowns is the escalating open-circuit cooldown schedule. A reopen
	// after a failed probe advances one tier; the last tier is the cap.
	Cooldowns []time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldowns: []time.Duration{
			30 * time.Second,
			2 * time.Minute,
			10 * time.Minute,
		},
	}
}

// Cooldown returns the cooldown for an escalation tier, capped at the
// last configured tier.
func (c Config) Cooldown(tier int) time.Duration {
	if len(c.Cooldowns) == 0 {
		return 30 * time.Second
	}
	if tier < 0 {
		tier = 0
	}
	if tier >= len(c.Cooldowns) {
		tier = len(c.Cooldowns) - 1
	}
	return c.Cooldowns[tier]
}

// MaxTier is the highest escalation tier.
func (c Config) MaxTier() int {
	if len(c.Cooldowns) == 0 {
		return 0
	}
	return len(c.Cooldowns) - 1
}

// Breaker tracks failure state per subscription. The state is advisory
// and shared across workers, so implementations must make each
// transition atomic.
type Breaker interface {
	// Allow is the publish-path gate. It returns false while the circuit
	// is open. When the cooldown has elapsed it transitions the circuit
	// to half-open and returns true exactly once: the caller owns the
	// probe delivery.
	Allow(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// IsOpen reports whether the circuit is open and still cooling down.
	// It never claims the probe; workers use it to park jobs that were
	// enqueued before the circuit opened.
	IsOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// RecordOutcome feeds a delivery result back. Success closes the
	// circuit and resets the failure count; a half-open failure reopens
	// at the next escalation tier.
	RecordOutcome(ctx context.Context, subscriptionID uuid.UUID, success bool) error
}
