package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type circuit struct {
	state     State
	failures  int
	tier      int
	openUntil time.Time
}

// Memory is an in-process Breaker for tests and single-node runs. The
// shared deployment uses the Redis implementation in internal/redis,
// which applies the same transitions via Lua scripts.
type Memory struct {
	config   Config
	clock    func() time.Time
	mu       sync.Mutex
	circuits map[uuid.UUID]*circuit
}

func NewMemory(config Config) *Memory {
	return &Memory{
		config:   config,
		clock:    time.Now,
		circuits: make(map[uuid.UUID]*circuit),
	}
}

// SetClock overrides the time source. Tests only.
func (m *Memory) SetClock(clock func() time.Time) {
	m.clock = clock
}

func (m *Memory) Allow(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.circuits[subscriptionID]
	if !ok || c.state == StateClosed {
		return true, nil
	}
	switch c.state {
	case StateOpen:
		if m.clock().Before(c.openUntil) {
			return false, nil
		}
		c.state = StateHalfOpen
		return true, nil
	case StateHalfOpen:
		// Probe already claimed.
		return false, nil
	}
	return true, nil
}

func (m *Memory) IsOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.circuits[subscriptionID]
	if !ok {
		return false, nil
	}
	return c.state == StateOpen && m.clock().Before(c.openUntil), nil
}

func (m *Memory) RecordOutcome(ctx context.Context, subscriptionID uuid.UUID, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		delete(m.circuits, subscriptionID)
		return nil
	}

	c, ok := m.circuits[subscriptionID]
	if !ok {
		c = &circuit{state: StateClosed}
		m.circuits[subscriptionID] = c
	}

	if c.state == StateHalfOpen {
		// Failed probe: reopen with a longer cooldown.
		if c.tier < m.config.MaxTier() {
			c.tier++
		}
		c.state = StateOpen
		c.openUntil = m.clock().Add(m.config.Cooldown(c.tier))
		return nil
	}

	c.failures++
	if c.failures >= m.config.FailureThreshold && c.state == StateClosed {
		c.state = StateOpen
		c.openUntil = m.clock().Add(m.config.Cooldown(c.tier))
	}
	return nil
}
