package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// Window is an in-process sliding-window limiter for one guarded operation.
//
// It keeps a ledger of the timestamps of admitted calls, oldest first, sized to
// the quota. A Window is safe for concurrent use and must not be copied.
type Window struct {
	quota Quota
	opts  options

	// mu guards history and latest. Now is sampled while holding it: even though
	// the real clock is monotonic, callers may get past the lock in a different
	// order than they read the time.
	mu      sync.Mutex
	history *circularbuffer.Queue
	latest  time.Time

	admitted atomic.Uint64
	denied   atomic.Uint64
	denyLog  rate.Sometimes
}

var _ Limiter = (*Window)(nil)

// NewWindow validates q and returns an empty limiter.
func NewWindow(q Quota, opts ...Option) (*Window, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return newWindow(q, buildOptions(opts)), nil
}

func newWindow(q Quota, o options) *Window {
	return &Window{
		quota:   q,
		opts:    o,
		history: circularbuffer.New(q.MaxCalls),
		denyLog: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// TryAdmit evicts expired entries, checks the quota and, when there is room,
// records the call. A denial is a normal outcome and is never retried.
func (w *Window) TryAdmit() bool {
	admitted := w.admit()
	if admitted {
		w.admitted.Inc()
	} else {
		w.denied.Inc()
		w.denyLog.Do(func() {
			w.opts.logger.Debug("guard throttled",
				slog.String("guard", w.opts.name),
				slog.String("quota", w.quota.String()),
				slog.Uint64("denied_total", w.denied.Load()),
			)
		})
	}
	w.opts.recorder.RecordAdmission(w.opts.name, admitted)
	return admitted
}

func (w *Window) admit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.opts.clock.Now()
	if now.Before(w.latest) {
		now = w.latest
	}
	w.latest = now

	w.evict(now)
	if w.history.Size() >= w.quota.MaxCalls {
		return false
	}
	w.history.Enqueue(now)
	return true
}

// evict pops expired entries off the front of the ledger, and only while the
// quota is exhausted. Below quota, stale entries are left for a later call.
func (w *Window) evict(now time.Time) {
	for !w.history.Empty() && w.history.Size() >= w.quota.MaxCalls {
		oldest, _ := w.history.Peek()
		if now.Sub(oldest.(time.Time)) <= w.quota.Window {
			return
		}
		w.history.Dequeue()
	}
}

func (w *Window) Quota() Quota { return w.quota }

func (w *Window) Name() string { return w.opts.name }

func (w *Window) Stats() Stats {
	return Stats{
		Name:     w.opts.name,
		Quota:    w.quota.String(),
		Admitted: w.admitted.Load(),
		Denied:   w.denied.Load(),
	}
}
