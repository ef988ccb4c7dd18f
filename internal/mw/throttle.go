package mw

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/3xpluto/throttle/internal/ratelimit"
)

const (
	GuardHeader = "X-Throttle-Guard"
	QuotaHeader = "X-Throttle-Quota"
)

type quotaer interface {
	Quota() ratelimit.Quota
}

// Throttle treats next as a guarded operation: it runs only when lim admits
// the request, otherwise the client gets a 429 and next is never called.
func Throttle(lim ratelimit.Limiter, guard string, next http.Handler) http.Handler {
	var (
		quota      string
		retryAfter = 1
	)
	if q, ok := lim.(quotaer); ok {
		quota = q.Quota().String()
		// every entry counted now has expired one window from now
		if secs := int(math.Ceil(q.Quota().Window.Seconds())); secs > retryAfter {
			retryAfter = secs
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(GuardHeader, guard)
		if quota != "" {
			w.Header().Set(QuotaHeader, quota)
		}

		if !lim.TryAdmit() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":               "rate_limited",
				"guard":               guard,
				"quota":               quota,
				"retry_after_seconds": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
