// Package pinguard locks an account's PIN after repeated failures.
package pinguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps failure counters in Redis so every API node sees the same
// lockout. A counter expires lockout after the first failure.
type Redis struct {
	client      *redis.Client
	maxAttempts int64
	lockout     time.Duration
}

func NewRedis(client *redis.Client, maxAttempts int, lockout time.Duration) *Redis {
	return &Redis{client: client, maxAttempts: int64(maxAttempts), lockout: lockout}
}

func redisKey(key string) string {
	return "pin:fail:" + key
}

func (g *Redis) Allowed(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Get(ctx, redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("reading pin failures: %w", err)
	}

	return n < g.maxAttempts, nil
}

// Fail bumps the counter and gives it a TTL in one MULTI block, so a counter
// can never outlive its lockout window.
func (g *Redis) Fail(ctx context.Context, key string) error {
	k := redisKey(key)

	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, g.lockout)

		return nil
	})
	if err != nil {
		return fmt.Errorf("counting pin failure: %w", err)
	}

	return nil
}

func (g *Redis) Reset(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("clearing pin failures: %w", err)
	}

	return nil
}

// Memory is the single-process equivalent of Redis.
type Memory struct {
	mu          sync.Mutex
	counters    map[string]counter
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

type counter struct {
	failures int
	expires  time.Time
}

func NewMemory(maxAttempts int, lockout time.Duration) *Memory {
	return &Memory{
		counters:    make(map[string]counter),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// live returns the unexpired counter for key. Callers hold mu.
func (g *Memory) live(key string) (counter, bool) {
	c, ok := g.counters[key]
	if ok && !g.now().Before(c.expires) {
		delete(g.counters, key)
		return counter{}, false
	}

	return c, ok
}

func (g *Memory) Allowed(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, _ := g.live(key)

	return c.failures < g.maxAttempts, nil
}

func (g *Memory) Fail(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.live(key)
	if !ok {
		c.expires = g.now().Add(g.lockout)
	}

	c.failures++
	g.counters[key] = c

	return nil
}

func (g *Memory) Reset(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.counters, key)

	return nil
}
