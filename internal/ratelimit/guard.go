package ratelimit

import "sync"

// Guard wraps fn so that it only runs when l admits the call. The boolean
// result is false, and the zero T is returned, when the call was throttled.
func Guard[T any](l Limiter, fn func() T) func() (T, bool) {
	return func() (T, bool) {
		if !l.TryAdmit() {
			var zero T
			return zero, false
		}
		return fn(), true
	}
}

// GuardFunc is Guard for single-argument operations. Use a struct argument
// for more.
func GuardFunc[A, T any](l Limiter, fn func(A) T) func(A) (T, bool) {
	return func(arg A) (T, bool) {
		if !l.TryAdmit() {
			var zero T
			return zero, false
		}
		return fn(arg), true
	}
}

// Do runs fn if l admits the call and reports whether it ran.
func Do(l Limiter, fn func()) bool {
	if !l.TryAdmit() {
		return false
	}
	fn()
	return true
}

// Throttle returns fn guarded by its own Window, built on first call. Each
// call to Throttle yields an independent guard.
func Throttle[A, T any](q Quota, fn func(A) T, opts ...Option) (func(A) (T, bool), error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	slot := sync.OnceValue(func() *Window {
		return newWindow(q, o)
	})
	return func(arg A) (T, bool) {
		if !slot().TryAdmit() {
			var zero T
			return zero, false
		}
		return fn(arg), true
	}, nil
}

// MustThrottle is like Throttle but panics if q is invalid.
func MustThrottle[A, T any](q Quota, fn func(A) T, opts ...Option) func(A) (T, bool) {
	g, err := Throttle(q, fn, opts...)
	if err != nil {
		panic(err)
	}
	return g
}
