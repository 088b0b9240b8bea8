package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(DefaultConfig())
	m.SetClock(func() time.Time { return now })
	return m, &now
}

func failN(t *testing.T, m *Memory, id uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.RecordOutcome(context.Background(), id, false))
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	m, _ := testBreaker(t)
	id := uuid.New()
	ctx := context.Background()

	failN(t, m, id, 4)
	open, err := m.IsOpen(ctx, id)
	require.NoError(t, err)
	require.False(t, open, "circuit must stay closed below the threshold")

	failN(t, m, id, 1)
	open, err = m.IsOpen(ctx, id)
	require.NoError(t, err)
	require.True(t, open)

	allowed, err := m.Allow(ctx, id)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestBreakerSuccessResets(t *testing.T) {
	m, _ := testBreaker(t)
	id := uuid.New()
	ctx := context.Background()

	failN(t, m, id, 4)
	require.NoError(t, m.RecordOutcome(ctx, id, true))

	// The consecutive-failure count restarted; four more failures must
	// not open the circuit.
	failN(t, m, id, 4)
	open, err := m.IsOpen(ctx, id)
	require.NoError(t, err)
	require.False(t, open)
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	m, now := testBreaker(t)
	id := uuid.New()
	ctx := context.Background()

	failN(t, m, id, 5)

	// Cooldown not elapsed yet.
	allowed, err := m.Allow(ctx, id)
	require.NoError(t, err)
	require.False(t, allowed)

	*now = now.Add(31 * time.Second)

	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed, "first caller after cooldown owns the probe")

	for i := 0; i < 10; i++ {
		allowed, err = m.Allow(ctx, id)
		require.NoError(t, err)
		require.False(t, allowed, "only one probe regardless of publish volume")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	m, now := testBreaker(t)
	id := uuid.New()
	ctx := context.Background()

	failN(t, m, id, 5)
	*now = now.Add(31 * time.Second)

	allowed, err := m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, m.RecordOutcome(ctx, id, true))

	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)
	open, err := m.IsOpen(ctx, id)
	require.NoError(t, err)
	require.False(t, open)
}

func TestBreakerProbeFailureEscalates(t *testing.T) {
	m, now := testBreaker(t)
	id := uuid.New()
	ctx := context.Background()

	failN(t, m, id, 5)

	// First reopen: 2m tier.
	*now = now.Add(31 * time.Second)
	allowed, err := m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)
	require.NoError(t, m.RecordOutcome(ctx, id, false))

	*now = now.Add(time.Minute)
	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.False(t, allowed, "second tier cooldown is two minutes")

	*now = now.Add(61 * time.Second)
	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)

	// Second reopen: 10m tier, which is also the cap.
	require.NoError(t, m.RecordOutcome(ctx, id, false))
	*now = now.Add(5 * time.Minute)
	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.False(t, allowed)

	*now = now.Add(5*time.Minute + time.Second)
	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)

	// Capped: another failed probe stays at the last tier.
	require.NoError(t, m.RecordOutcome(ctx, id, false))
	*now = now.Add(10*time.Minute + time.Second)
	allowed, err = m.Allow(ctx, id)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCooldownSchedule(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 30*time.Second, cfg.Cooldown(0))
	require.Equal(t, 2*time.Minute, cfg.Cooldown(1))
	require.Equal(t, 10*time.Minute, cfg.Cooldown(2))
	require.Equal(t, 10*time.Minute, cfg.Cooldown(7), "schedule is capped at the last tier")
}
