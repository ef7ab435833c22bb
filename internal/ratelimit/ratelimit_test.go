// File path: internal/ratelimit/ratelimit_test.go
package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

func newLimiter(t *testing.T, limits map[string]config.Limit) (*Limiter, *time.Time) {
	t.Helper()
	store, err := sqlite.OpenWithConfig(sqlite.DefaultConfig(filepath.Join(t.TempDir(), "rl.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	l := New(store.DB(), config.RateLimit{Window: time.Hour, Limits: limits})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestSlidingWindow(t *testing.T) {
	l, clock := newLimiter(t, map[string]config.Limit{"PentestGPT": {Free: 2, Pro: 5}})
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "u1", KeyPentestGPT, false))
	*clock = clock.Add(10 * time.Minute)
	require.NoError(t, l.Check(ctx, "u1", KeyPentestGPT, false))

	err := l.Check(ctx, "u1", KeyPentestGPT, false)
	require.Error(t, err)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 429, le.HTTPStatus())
	assert.Equal(t, 2, le.Limit)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), le.Reset.UTC())
	assert.Contains(t, le.Message, "limit of 2 messages per hour for pentestgpt")
	assert.Contains(t, le.Message, "try again in 50 minutes")
	assert.Contains(t, le.Message, "Upgrade to Pro")
	assert.True(t, IsLimitError(err))

	// other users and pro quota are independent
	require.NoError(t, l.Check(ctx, "u2", KeyPentestGPT, false))
	remaining, err := l.Remaining(ctx, "u1", KeyPentestGPT, true)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	*clock = clock.Add(51 * time.Minute)
	require.NoError(t, l.Check(ctx, "u1", KeyPentestGPT, false))
	remaining, err = l.Remaining(ctx, "u1", KeyPentestGPT, false)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestPlanRestrictedAndUnknownKeys(t *testing.T) {
	l, _ := newLimiter(t, map[string]config.Limit{KeyGPT4: {Free: 0, Pro: 1}})
	ctx := context.Background()

	err := l.Check(ctx, "u1", KeyGPT4, false)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "not available on your current plan")

	require.NoError(t, l.Check(ctx, "u1", KeyGPT4, true))
	err = l.Check(ctx, "u1", KeyGPT4, true)
	require.ErrorAs(t, err, &le)
	assert.NotContains(t, le.Message, "Upgrade")

	require.NoError(t, l.Check(ctx, "u1", "unknown", false))
	var nilLimiter *Limiter
	require.NoError(t, nilLimiter.Check(ctx, "u1", KeyGPT4, false))
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "hour", formatWindow(time.Hour))
	assert.Equal(t, "3 hours", formatWindow(3*time.Hour))
	assert.Equal(t, "30 minutes", formatWindow(30*time.Minute))
	assert.Equal(t, "minute", formatWindow(time.Minute))
}
