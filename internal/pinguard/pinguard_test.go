package pinguard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/pinguard"
)

var (
	_ account.PINGuard = (*pinguard.Redis)(nil)
	_ account.PINGuard = (*pinguard.Memory)(nil)
)

func assertLockout(t *testing.T, g account.PINGuard, expire func(time.Duration)) {
	t.Helper()

	ctx := context.Background()
	key := "acct-1"

	for range 3 {
		ok, err := g.Allowed(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, g.Fail(ctx, key))
	}

	ok, err := g.Allowed(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "locked after max attempts")

	other, err := g.Allowed(ctx, "acct-2")
	require.NoError(t, err)
	assert.True(t, other, "other keys unaffected")

	expire(16 * time.Minute)

	ok, err = g.Allowed(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "lockout expires")

	require.NoError(t, g.Fail(ctx, key))
	require.NoError(t, g.Reset(ctx, key))

	ok, err = g.Allowed(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Lockout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := pinguard.NewRedis(client, 3, 15*time.Minute)

	assertLockout(t, g, mr.FastForward)
}

func TestRedis_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := pinguard.NewRedis(client, 3, 15*time.Minute)
	require.NoError(t, g.Fail(context.Background(), "abc"))

	got, err := mr.Get("pin:fail:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.Equal(t, 15*time.Minute, mr.TTL("pin:fail:abc"))
}

func TestRedis_FailAlwaysLeavesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := pinguard.NewRedis(client, 3, 15*time.Minute)
	ctx := context.Background()

	t.Run("window is not extended by later failures", func(t *testing.T) {
		require.NoError(t, g.Fail(ctx, "abc"))
		mr.FastForward(5 * time.Minute)
		require.NoError(t, g.Fail(ctx, "abc"))

		assert.Equal(t, 10*time.Minute, mr.TTL("pin:fail:abc"))
	})

	t.Run("counter left without TTL gets one", func(t *testing.T) {
		require.NoError(t, mr.Set("pin:fail:stuck", "7"))
		require.Zero(t, mr.TTL("pin:fail:stuck"))

		require.NoError(t, g.Fail(ctx, "stuck"))

		got, err := mr.Get("pin:fail:stuck")
		require.NoError(t, err)
		assert.Equal(t, "8", got)
		assert.Equal(t, 15*time.Minute, mr.TTL("pin:fail:stuck"))

		mr.FastForward(16 * time.Minute)

		ok, err := g.Allowed(ctx, "stuck")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestMemory_Lockout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := pinguard.NewMemory(3, 15*time.Minute)
	g.SetClock(func() time.Time { return now })

	assertLockout(t, g, func(d time.Duration) { now = now.Add(d) })
}
