// Command demo drives two guarded functions the way a program would: bursts
// of calls from one goroutine, then bursts spread over many goroutines.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/3xpluto/throttle/internal/logging"
	"github.com/3xpluto/throttle/internal/ratelimit"
)

func main() {
	var rounds, calls int
	var level string
	flag.IntVar(&rounds, "rounds", 3, "bursts per scenario")
	flag.IntVar(&calls, "calls", 20, "calls per burst")
	flag.StringVar(&level, "log-level", "info", "debug shows throttled calls")
	flag.Parse()

	log, err := logging.NewWith(os.Stderr, level, "text")
	if err != nil {
		log.Warn("bad log level, using info", slog.String("error", err.Error()))
	}

	tenPerSecond := ratelimit.MustThrottle(
		ratelimit.Quota{MaxCalls: 10, Window: time.Second},
		func(msg string) string {
			log.Info(msg)
			return "foo"
		},
		ratelimit.WithName("ten_per_second"), ratelimit.WithLogger(log),
	)
	oncePer100ms := ratelimit.MustThrottle(
		ratelimit.Quota{MaxCalls: 1, Window: 100 * time.Millisecond},
		func(msg string) string {
			log.Info(msg)
			return "foo"
		},
		ratelimit.WithName("once_per_100ms"), ratelimit.WithLogger(log),
	)

	burst := func(name string, g func(string) (string, bool), pause time.Duration) {
		for r := 0; r < rounds; r++ {
			ran := 0
			for i := 0; i < calls; i++ {
				if _, ok := g(fmt.Sprintf("%d: %s", i, name)); ok {
					ran++
				}
			}
			log.Info("burst done", slog.String("guard", name), slog.Int("round", r), slog.Int("executed", ran), slog.Int("calls", calls))
			time.Sleep(pause)
		}
	}

	burst("running 10 times per second", tenPerSecond, time.Second)
	burst("running once per 100 milliseconds", oncePer100ms, 100*time.Millisecond)

	for r := 0; r < rounds; r++ {
		var (
			wg  sync.WaitGroup
			ran atomic.Int64
		)
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, ok := tenPerSecond(fmt.Sprintf("%d: running 10 times per second from a goroutine", i)); ok {
					ran.Inc()
				}
			}(i)
		}
		wg.Wait()
		log.Info("concurrent burst done", slog.Int("round", r), slog.Int64("executed", ran.Load()), slog.Int("calls", calls))
		time.Sleep(time.Second)
	}
}
