package ratelimit

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestGuardSkipsDeniedCalls(t *testing.T) {
	w := newTestWindow(t, 2, time.Second, clockwork.NewFakeClock())
	var ran int
	g := Guard(w, func() string {
		ran++
		return "foo"
	})

	for i := 0; i < 2; i++ {
		v, ok := g()
		require.True(t, ok)
		assert.Equal(t, "foo", v)
	}
	v, ok := g()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, 2, ran)
}

func TestGuardFuncPassesArgument(t *testing.T) {
	w := newTestWindow(t, 1, time.Second, clockwork.NewFakeClock())
	g := GuardFunc(w, strings.ToUpper)

	v, ok := g("hello")
	assert.True(t, ok)
	assert.Equal(t, "HELLO", v)

	v, ok = g("again")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestDo(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := newTestWindow(t, 1, 100*time.Millisecond, clock)
	var ran int

	assert.True(t, Do(w, func() { ran++ }))
	assert.False(t, Do(w, func() { ran++ }))
	clock.Advance(101 * time.Millisecond)
	assert.True(t, Do(w, func() { ran++ }))
	assert.Equal(t, 2, ran)
}

func TestThrottleGivesEachFunctionItsOwnLedger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := Quota{MaxCalls: 10, Window: time.Second}
	echo := func(s string) string { return s }

	a := MustThrottle(q, echo, WithClock(clock))
	b := MustThrottle(q, echo, WithClock(clock))

	count := func(g func(string) (string, bool)) int {
		n := 0
		for i := 0; i < 20; i++ {
			if _, ok := g("x"); ok {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 10, count(a))
	assert.Equal(t, 10, count(b))

	clock.Advance(time.Second + time.Millisecond)
	assert.Equal(t, 10, count(a))
}

func TestThrottleRejectsInvalidQuota(t *testing.T) {
	g, err := Throttle(Quota{MaxCalls: 0, Window: time.Second}, func(int) int { return 0 })
	assert.Error(t, err)
	assert.Nil(t, g)
	assert.Panics(t, func() {
		MustThrottle(Quota{MaxCalls: 1, Window: -1}, func(int) int { return 0 })
	})
}

func TestThrottleConcurrentFirstUse(t *testing.T) {
	var bodies atomic.Int64
	g := MustThrottle(Quota{MaxCalls: 10, Window: time.Minute}, func(int) struct{} {
		bodies.Inc()
		return struct{}{}
	}, WithClock(clockwork.NewFakeClock()))

	var (
		wg       sync.WaitGroup
		admitted atomic.Int64
	)
	start := make(chan struct{})
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			if _, ok := g(i); ok {
				admitted.Inc()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
	assert.Equal(t, int64(10), bodies.Load())
}
