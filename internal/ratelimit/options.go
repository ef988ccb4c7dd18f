package ratelimit

import (
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

type options struct {
	clock    clockwork.Clock
	name     string
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Window, a RedisWindow or every limiter of a Registry.
type Option func(*options)

func defaultOptions() options {
	return options{
		clock:    clockwork.NewRealClock(),
		name:     "anonymous",
		recorder: NoopRecorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the real clock, mostly for tests driving a fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithName labels the limiter in logs, metrics and stats.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
