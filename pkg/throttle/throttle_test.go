package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstIsImmediate(t *testing.T) {
	l := New(1, 3, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiter_CooldownBlocksUntilDeadline(t *testing.T) {
	l := New(100, 10, time.Second)
	l.RecordRateLimit(150 * time.Millisecond)
	assert.True(t, l.CoolingDown())

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, l.CoolingDown())
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	l := New(100, 10, time.Minute)
	l.RecordRateLimit(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_ShorterCooldownDoesNotOverride(t *testing.T) {
	l := New(100, 10, time.Minute)
	l.RecordRateLimit(time.Minute)
	l.RecordRateLimit(time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.CoolingDown())
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0, 0)
	assert.Equal(t, DefaultCooldown, l.cooldown)
	assert.Equal(t, DefaultBurst, l.limiter.Burst())
}
