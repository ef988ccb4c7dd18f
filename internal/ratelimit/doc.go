// Package ratelimit limits how many times an operation may run within a
// trailing time window.
//
// The primary entry point is the Limiter interface:
//
//	if lim.TryAdmit() {
//		send(msg)
//	}
//
// # Algorithm
//
// Window keeps a ledger of the timestamps of admitted calls, oldest first,
// never longer than the quota. On every check, and only while the quota is
// exhausted, entries older than the window are dropped from the front. If the
// ledger is still full the call is denied, otherwise the current time is
// appended. Below quota the ledger is not scrubbed, so an entry may outlive
// the window until the quota is approached again; this keeps each check O(1)
// amortized.
//
// A window of zero denies once the quota is reached until the clock moves.
// Windows shorter than the clock resolution behave the same way.
//
// # One limiter per operation
//
// A guarded operation must use the same limiter for every caller. Three ways
// to get one are provided:
//
//   - Lazy returns a static slot built with sync.OnceValue, for package-level
//     guards:
//
//     var emailGuard = ratelimit.Lazy(ratelimit.Quota{MaxCalls: 10, Window: time.Second})
//
//   - Registry creates limiters by name on first use and is what the
//     configuration layer builds on.
//
//   - Throttle and MustThrottle wrap a function with its own lazily built
//     Window.
//
// Guard, GuardFunc and Do run a function only when admitted and tell the
// caller whether it ran. A throttled call is not an error.
//
// # Backends
//
// Window is process-local. RedisWindow keeps the same ledger in a Redis sorted
// set updated by a Lua script, for a quota shared by several processes. Its
// TryAdmit denies when Redis is unreachable and counts the check under
// Stats.Errors; use Admit to see the error. Keys expire one millisecond after
// the window, so 1ms is the smallest window RedisWindow honors.
//
// # Concurrency
//
// Each limiter has its own mutex, held for the eviction, the check and the
// append, and while the time is sampled. Limiters share nothing with each
// other. Recorders are called after the lock is released.
package ratelimit
