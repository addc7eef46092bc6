package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/tool"
)

// Limiter admits verification attempts per charge id. Wait returns
// ErrRateLimited once the window is full and otherwise blocks until the
// minimum spacing since the previous attempt has passed.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

type LimiterOptions struct {
	MaxAttempts int
	Window      time.Duration
	MinSpacing  time.Duration
}

func limiterOptions(cfg *config.Config) LimiterOptions {
	return LimiterOptions{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
		MinSpacing:  cfg.RateLimit.MinSpacing,
	}
}

// NewLimiter builds the limiter selected by rate_limit.backend.
func NewLimiter(cfg *config.Config, rdb *redis.Client) Limiter {
	if cfg.RateLimit.Backend == "redis" {
		return NewRedisLimiter(rdb, limiterOptions(cfg))
	}
	return NewMemoryLimiter(limiterOptions(cfg))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const memoryGCThreshold = 1024

// MemoryLimiter keeps attempts in process memory. Instances do not share
// state, so a scaled-out deployment under-enforces.
type MemoryLimiter struct {
	opts     LimiterOptions
	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewMemoryLimiter(opts LimiterOptions) *MemoryLimiter {
	return &MemoryLimiter{
		opts:     opts,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func (l *MemoryLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	now := l.now()
	recent := l.prune(l.attempts[key], now)
	if len(recent) >= l.opts.MaxAttempts {
		l.attempts[key] = recent
		l.mu.Unlock()
		return ErrRateLimited
	}
	at := now
	if n := len(recent); n > 0 {
		if next := recent[n-1].Add(l.opts.MinSpacing); next.After(now) {
			at = next
		}
	}
	l.attempts[key] = append(recent, at)
	if len(l.attempts) > memoryGCThreshold {
		l.gc(now)
	}
	l.mu.Unlock()

	return l.sleep(ctx, at.Sub(now))
}

func (l *MemoryLimiter) prune(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.opts.Window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func (l *MemoryLimiter) gc(now time.Time) {
	for k, ts := range l.attempts {
		if len(l.prune(ts, now)) == 0 {
			delete(l.attempts, k)
		}
	}
}

// redisLimiterScript keeps one sorted set per charge, scored by attempt time
// in milliseconds. It returns -1 when the window is full, otherwise the
// milliseconds the caller must wait.
var redisLimiterScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local spacing = tonumber(ARGV[3])
local max = tonumber(ARGV[4])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= max then
  return -1
end
local at = now
local last = redis.call('ZRANGE', key, -1, -1, 'WITHSCORES')
if last[2] ~= nil then
  local nxt = tonumber(last[2]) + spacing
  if nxt > at then at = nxt end
end
redis.call('ZADD', key, at, ARGV[5])
redis.call('PEXPIRE', key, window + spacing)
return at - now
`)

const redisLimiterPrefix = "coachpay:verify:rl:"

// RedisLimiter shares attempt counts across instances.
type RedisLimiter struct {
	rdb   *redis.Client
	opts  LimiterOptions
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRedisLimiter(rdb *redis.Client, opts LimiterOptions) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, opts: opts, now: time.Now, sleep: sleepCtx}
}

func (l *RedisLimiter) Wait(ctx context.Context, key string) error {
	wait, err := redisLimiterScript.Run(ctx, l.rdb, []string{redisLimiterPrefix + key},
		l.now().UnixMilli(),
		l.opts.Window.Milliseconds(),
		l.opts.MinSpacing.Milliseconds(),
		l.opts.MaxAttempts,
		tool.GenerateUUIDV7(),
	).Int64()
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if wait < 0 {
		return ErrRateLimited
	}
	return l.sleep(ctx, time.Duration(wait)*time.Millisecond)
}
