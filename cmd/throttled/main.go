package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/3xpluto/throttle/internal/config"
	"github.com/3xpluto/throttle/internal/logging"
	"github.com/3xpluto/throttle/internal/mw"
	"github.com/3xpluto/throttle/internal/ratelimit"
)

func main() {
	var configPath string
	var validateOnly bool
	flag.StringVar(&configPath, "config", "./config/config.example.yaml", "path to yaml config")
	flag.BoolVar(&validateOnly, "validate-config", false, "validate config and exit")
	flag.Parse()

	log := logging.New()

	// a missing .env is fine; the process environment still applies
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to read .env", slog.String("error", err.Error()))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if validateOnly {
		log.Info("config ok", slog.Int("guards", len(cfg.Guards)))
		return
	}

	log, err = logging.NewWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Warn("bad log level, using info", slog.String("error", err.Error()))
	}

	// ---- Metrics
	reg := prometheus.NewRegistry()
	metrics := mw.NewMetrics(reg)

	// ---- Guard backend
	opts := []ratelimit.Option{ratelimit.WithLogger(log), ratelimit.WithRecorder(metrics)}
	var factory ratelimit.Factory

	switch strings.ToLower(cfg.Backend.Type) {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Backend.Redis.Addr,
			Password: cfg.Backend.Redis.Password,
			DB:       cfg.Backend.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			// guards must never silently become per-process, so refuse to start
			log.Error("redis unreachable", slog.String("addr", cfg.Backend.Redis.Addr), slog.String("error", err.Error()))
			os.Exit(1)
		}
		factory = ratelimit.RedisFactory(rdb, ratelimit.RedisConfig{
			KeyPrefix: cfg.Backend.Redis.KeyPrefix,
			Timeout:   time.Duration(cfg.Backend.Redis.TimeoutMS) * time.Millisecond,
		}, opts...)

	default:
		factory = ratelimit.MemoryFactory(opts...)
	}

	guards := ratelimit.NewRegistryWithFactory(factory)
	for _, g := range cfg.Guards {
		if err := guards.Register(g.Name, g.Quota()); err != nil {
			log.Error("failed to register guard", slog.String("guard", g.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("guard registered", slog.String("guard", g.Name), slog.String("quota", g.Quota().String()))
	}

	// ---- Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHandler(cfg, guards, reg, metrics, log),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info("throttled listening", slog.String("addr", cfg.Server.Addr), slog.String("backend", cfg.Backend.Type))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("shutdown complete")
}
