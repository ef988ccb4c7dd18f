package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// slidingWindowLua runs the same lazy-eviction check as Window against a
// sorted set scored by admission time in microseconds.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max_calls = tonumber(ARGV[3])
local member = ARGV[4]
local ttl_ms = tonumber(ARGV[5])

local n = redis.call("ZCARD", key)
while n > 0 and n >= max_calls do
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  if now - tonumber(oldest[2]) > window then
    redis.call("ZREMRANGEBYRANK", key, 0, 0)
    n = n - 1
  else
    break
  end
end

if n >= max_calls then
  return {0, n}
end

redis.call("ZADD", key, ARGV[1], member)
redis.call("PEXPIRE", key, ttl_ms)
return {1, n + 1}
`

var slidingWindowScript = redis.NewScript(slidingWindowLua)

var errBadScriptReply = errors.New("invalid sliding window script reply")

type RedisConfig struct {
	KeyPrefix string
	// Timeout bounds each TryAdmit round trip. Admit uses the caller's context.
	Timeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "throttle:"
	}
	if c.Timeout <= 0 {
		c.Timeout = 100 * time.Millisecond
	}
	return c
}

// RedisWindow is a sliding-window limiter whose ledger is a Redis sorted set,
// so several processes can share one quota. Timestamps come from the wall
// clock of each caller; hosts should be kept in sync.
//
// The key expires one millisecond after the window, so windows below 1ms
// behave like a 1ms window on this backend.
type RedisWindow struct {
	rdb     redis.Scripter
	key     string
	quota   Quota
	timeout time.Duration
	opts    options

	admitted atomic.Uint64
	denied   atomic.Uint64
	failed   atomic.Uint64
	errLog   rate.Sometimes
}

var _ ContextLimiter = (*RedisWindow)(nil)

func NewRedisWindow(rdb redis.Scripter, name string, q Quota, cfg RedisConfig, opts ...Option) (*RedisWindow, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	o := buildOptions(opts)
	o.name = name
	cfg = cfg.withDefaults()
	return &RedisWindow{
		rdb:     rdb,
		key:     cfg.KeyPrefix + name,
		quota:   q,
		timeout: cfg.Timeout,
		opts:    o,
		errLog:  rate.Sometimes{First: 1, Interval: time.Second},
	}, nil
}

// RedisFactory builds RedisWindows for a Registry.
func RedisFactory(rdb redis.Scripter, cfg RedisConfig, opts ...Option) Factory {
	return func(name string, q Quota) (Limiter, error) {
		return NewRedisWindow(rdb, name, q, cfg, opts...)
	}
}

// Admit runs one admission check against Redis.
func (w *RedisWindow) Admit(ctx context.Context) (bool, error) {
	now := w.opts.clock.Now().UnixMicro()
	ttl := w.quota.Window.Milliseconds() + 1

	res, err := slidingWindowScript.Run(ctx, w.rdb, []string{w.key},
		now,
		w.quota.Window.Microseconds(),
		w.quota.MaxCalls,
		uuid.NewString(),
		ttl,
	).Result()
	if err != nil {
		return false, err
	}
	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return false, errBadScriptReply
	}
	return toInt(arr[0]) == 1, nil
}

// TryAdmit is Admit with a bounded background context. It fails closed: if
// Redis cannot be reached the call is refused, and counted as an error rather
// than a denial.
func (w *RedisWindow) TryAdmit() bool {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	admitted, err := w.Admit(ctx)
	if err != nil {
		w.failed.Inc()
		w.errLog.Do(func() {
			w.opts.logger.Warn("guard ledger unavailable, denying",
				slog.String("guard", w.opts.name),
				slog.String("key", w.key),
				slog.String("error", err.Error()),
			)
		})
		w.opts.recorder.RecordError(w.opts.name)
		return false
	}
	if admitted {
		w.admitted.Inc()
	} else {
		w.denied.Inc()
	}
	w.opts.recorder.RecordAdmission(w.opts.name, admitted)
	return admitted
}

func (w *RedisWindow) Quota() Quota { return w.quota }

func (w *RedisWindow) Name() string { return w.opts.name }

// Stats counts outcomes seen by this process only.
func (w *RedisWindow) Stats() Stats {
	return Stats{
		Name:     w.opts.name,
		Quota:    w.quota.String(),
		Admitted: w.admitted.Load(),
		Denied:   w.denied.Load(),
		Errors:   w.failed.Load(),
	}
}

func toInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
