package mw

import (
	"log/slog"
	"net/http"
	"time"
)

func AccessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &StatusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)

		attrs := []any{
			slog.String("rid", RID(r.Context())),
			slog.String("route", RouteName(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.code()),
			slog.Int("bytes", sw.Bytes),
			slog.Duration("duration", time.Since(start)),
		}
		if guard := sw.Header().Get(GuardHeader); guard != "" {
			attrs = append(attrs, slog.String("guard", guard))
		}
		log.Info("http_request", attrs...)
	})
}
