package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidQuota    = errors.New("invalid quota")
	ErrInvalidMaxCalls = fmt.Errorf("%w: max_calls must be > 0", ErrInvalidQuota)
	ErrInvalidWindow   = fmt.Errorf("%w: window must be >= 0", ErrInvalidQuota)

	// ErrQuotaMismatch is returned when a guard is requested again under a
	// different quota than the one it was created with.
	ErrQuotaMismatch = errors.New("guard already exists with a different quota")
	ErrUnknownGuard  = errors.New("unknown guard")
)

// Limiter gates a single guarded operation. TryAdmit reports whether the
// next call may run and, if so, records it.
type Limiter interface {
	TryAdmit() bool
}

// ContextLimiter is a Limiter whose ledger lives outside the process. An error
// means the ledger could not be consulted, never that the quota is exhausted.
type ContextLimiter interface {
	Limiter
	Admit(ctx context.Context) (bool, error)
}

// Quota is the fixed configuration of a limiter: at most MaxCalls admitted
// calls within any trailing Window.
type Quota struct {
	MaxCalls int
	Window   time.Duration
}

func (q Quota) Validate() error {
	if q.MaxCalls <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxCalls, q.MaxCalls)
	}
	if q.Window < 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidWindow, q.Window)
	}
	return nil
}

func (q Quota) String() string {
	return fmt.Sprintf("%d/%s", q.MaxCalls, q.Window)
}

// Stats is a point-in-time snapshot of a limiter's outcome counters.
type Stats struct {
	Name     string `json:"name"`
	Quota    string `json:"quota"`
	Admitted uint64 `json:"admitted"`
	Denied   uint64 `json:"denied"`
	// Errors counts checks that could not reach the ledger.
	Errors   uint64 `json:"errors,omitempty"`
}
