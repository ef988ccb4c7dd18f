package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3xpluto/throttle/internal/config"
	"github.com/3xpluto/throttle/internal/mw"
	"github.com/3xpluto/throttle/internal/ratelimit"
)

// newHandler wires every configured guard to GET /work/{guard}; a guard
// named "ping" also backs GET /ping.
func newHandler(cfg *config.Config, guards *ratelimit.Registry, reg *prometheus.Registry, metrics *mw.Metrics, log *slog.Logger) http.Handler {
	startedAt := time.Now()

	wrap := func(routeName string, h http.Handler) http.Handler {
		h = mw.Recover(log, h)
		h = mw.AccessLog(log, h)
		h = mw.Instrument(metrics, h)
		h = mw.WithRoute(h, routeName)
		h = mw.RequestID(h)
		return h
	}
	wrapAdmin := func(routeName string, h http.Handler) http.Handler {
		return wrap(routeName, mw.RequireAdminKey(cfg.Server.AdminKey, h))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			return
		}
	})

	mux.Handle("GET /-/guards", wrapAdmin("admin_guards", mw.GuardStats(guards)))
	mux.Handle("GET /-/status", wrapAdmin("admin_status", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		info, _ := debug.ReadBuildInfo()
		goVer := ""
		if info != nil {
			goVer = info.GoVersion
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"time_utc":          time.Now().UTC().Format(time.RFC3339),
			"uptime_seconds":    int(time.Since(startedAt).Seconds()),
			"listen_addr":       cfg.Server.Addr,
			"go_version":        goVer,
			"backend":           cfg.Backend.Type,
			"guards_configured": len(cfg.Guards),
		})
	})))

	work := make(map[string]http.Handler, len(cfg.Guards))
	for _, g := range cfg.Guards {
		lim, err := guards.Lookup(g.Name)
		if err != nil {
			log.Error("guard not registered", slog.String("guard", g.Name), slog.String("error", err.Error()))
			continue
		}
		work[g.Name] = wrap("work_"+g.Name, mw.Throttle(lim, g.Name, workHandler(g.Name)))
	}

	mux.HandleFunc("GET /work/{guard}", func(w http.ResponseWriter, r *http.Request) {
		h, ok := work[r.PathValue("guard")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
	if h, ok := work["ping"]; ok {
		mux.Handle("GET /ping", h)
	}

	return mux
}

// workHandler stands in for the guarded operation.
func workHandler(guard string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"guard":    guard,
			"executed": true,
			"rid":      mw.RID(r.Context()),
		})
	})
}
