package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestRedisWindowBasicFlow(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	ctx := context.Background()

	w, err := NewRedisWindow(rdb, "ping", Quota{MaxCalls: 2, Window: time.Second}, RedisConfig{}, WithClock(clock))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := w.Admit(ctx)
		require.NoError(t, err)
		require.True(t, ok, "call %d", i)
	}
	ok, err := w.Admit(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := mr.ZMembers("throttle:ping")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	clock.Advance(time.Second + time.Millisecond)
	ok, err = w.Admit(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWindowOncePerHundredMillis(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	w, err := NewRedisWindow(rdb, "once", Quota{MaxCalls: 1, Window: 100 * time.Millisecond},
		RedisConfig{KeyPrefix: "test:"}, WithClock(clock))
	require.NoError(t, err)

	assert.True(t, w.TryAdmit())
	clock.Advance(50 * time.Millisecond)
	assert.False(t, w.TryAdmit())
	clock.Advance(51 * time.Millisecond)
	assert.True(t, w.TryAdmit())

	s := w.Stats()
	assert.Equal(t, uint64(2), s.Admitted)
	assert.Equal(t, uint64(1), s.Denied)
}

func TestRedisWindowSharedAcrossInstances(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	q := Quota{MaxCalls: 10, Window: time.Minute}

	// two processes guarding the same operation
	a := NewRegistryWithFactory(RedisFactory(rdb, RedisConfig{}, WithClock(clock)))
	b := NewRegistryWithFactory(RedisFactory(rdb, RedisConfig{}, WithClock(clock)))
	la := a.MustGet("report", q)
	lb := b.MustGet("report", q)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for _, lim := range []Limiter{la, lb} {
		for g := 0; g < 5; g++ {
			wg.Add(1)
			go func(lim Limiter) {
				defer wg.Done()
				n := 0
				for i := 0; i < 10; i++ {
					if lim.TryAdmit() {
						n++
					}
				}
				mu.Lock()
				admitted += n
				mu.Unlock()
			}(lim)
		}
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
}

func TestRedisWindowSetsExpiry(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	w, err := NewRedisWindow(rdb, "exp", Quota{MaxCalls: 3, Window: 2 * time.Second}, RedisConfig{})
	require.NoError(t, err)

	require.True(t, w.TryAdmit())
	ttl := mr.TTL("throttle:exp")
	assert.Greater(t, ttl, 2*time.Second)
	assert.LessOrEqual(t, ttl, 2*time.Second+time.Millisecond)
}

func TestRedisWindowFailsClosed(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	rec := &countingRecorder{}
	w, err := NewRedisWindow(rdb, "down", Quota{MaxCalls: 5, Window: time.Second}, RedisConfig{Timeout: 50 * time.Millisecond}, WithRecorder(rec))
	require.NoError(t, err)

	mr.Close()

	_, err = w.Admit(context.Background())
	assert.Error(t, err)
	assert.False(t, w.TryAdmit())

	// an unreachable ledger is an error, not a quota denial
	st := w.Stats()
	assert.Equal(t, uint64(0), st.Admitted)
	assert.Equal(t, uint64(0), st.Denied)
	assert.Equal(t, uint64(1), st.Errors)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.errors["down"])
	assert.Equal(t, 0, rec.counts["down"][false])
}

func TestRedisWindowZeroWindowLastsOneMillisecond(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	w, err := NewRedisWindow(rdb, "zero", Quota{MaxCalls: 1, Window: 0}, RedisConfig{}, WithClock(clock))
	require.NoError(t, err)

	assert.True(t, w.TryAdmit())
	assert.False(t, w.TryAdmit())
	assert.Equal(t, time.Millisecond, mr.TTL("throttle:zero"))

	// the clock stands still, only the key expiry frees the slot
	mr.FastForward(2 * time.Millisecond)
	assert.False(t, mr.Exists("throttle:zero"))
	assert.True(t, w.TryAdmit())
}

func TestRedisWindowHonorsContext(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	w, err := NewRedisWindow(rdb, "ctx", Quota{MaxCalls: 5, Window: time.Second}, RedisConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Admit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNewRedisWindowValidates(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	_, err := NewRedisWindow(rdb, "bad", Quota{MaxCalls: 0, Window: time.Second}, RedisConfig{})
	assert.True(t, errors.Is(err, ErrInvalidMaxCalls))

	_, err = NewRedisWindow(nil, "nil", Quota{MaxCalls: 1, Window: time.Second}, RedisConfig{})
	assert.Error(t, err)
}
