package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/3xpluto/throttle/internal/ratelimit"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Backend BackendConfig `yaml:"backend"`
	Guards  []GuardConfig `yaml:"guards"`
}

type ServerConfig struct {
	Addr                     string `yaml:"addr"`
	AdminKey                 string `yaml:"admin_key"`
	MaxHeaderBytes           int    `yaml:"max_header_bytes"`
	ReadTimeoutSeconds       int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds      int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds       int    `yaml:"idle_timeout_seconds"`
	ReadHeaderTimeoutSeconds int    `yaml:"read_header_timeout_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "text"
}

type BackendConfig struct {
	Type  string      `yaml:"type"` // "memory" | "redis"
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// GuardConfig declares one guarded operation. Quotas are fixed for the life
// of the process.
type GuardConfig struct {
	Name     string        `yaml:"name"`
	MaxCalls int           `yaml:"max_calls"`
	Window   time.Duration `yaml:"window"`
}

func (g GuardConfig) Quota() ratelimit.Quota {
	return ratelimit.Quota{MaxCalls: g.MaxCalls, Window: g.Window}
}

const (
	EnvRedisAddr = "THROTTLED_REDIS_ADDR"
	EnvAdminKey  = "THROTTLED_ADMIN_KEY"
	EnvLogLevel  = "THROTTLED_LOG_LEVEL"
)

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20 // 1 MiB
	}
	if cfg.Server.ReadHeaderTimeoutSeconds == 0 {
		cfg.Server.ReadHeaderTimeoutSeconds = 5
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Server.IdleTimeoutSeconds == 0 {
		cfg.Server.IdleTimeoutSeconds = 60
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "memory"
	}
	if cfg.Backend.Redis.KeyPrefix == "" {
		cfg.Backend.Redis.KeyPrefix = "throttle:"
	}
	if cfg.Backend.Redis.TimeoutMS == 0 {
		cfg.Backend.Redis.TimeoutMS = 100
	}

	// guard names are registry keys and route segments
	for i := range cfg.Guards {
		cfg.Guards[i].Name = strings.TrimSpace(cfg.Guards[i].Name)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Backend.Redis.Addr = v
	}
	if v := os.Getenv(EnvAdminKey); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
}

// Validate reports every problem in cfg, not just the first one.
func Validate(cfg *Config) error {
	var errs error

	if len(cfg.Guards) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("no guards configured"))
	}

	seenNames := map[string]struct{}{}
	for i, g := range cfg.Guards {
		idx := fmt.Sprintf("guards[%d]", i)
		name := strings.TrimSpace(g.Name)
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s.name is required", idx))
		} else if _, ok := seenNames[name]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate guard name: %q", name))
		}
		seenNames[name] = struct{}{}

		if g.MaxCalls <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s.max_calls must be > 0", idx))
		}
		if g.Window < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s.window must not be negative", idx))
		}
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend.Type))
	switch backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Backend.Redis.Addr) == "" {
			errs = multierr.Append(errs, fmt.Errorf("backend.redis.addr is required when backend.type is redis"))
		}
		if cfg.Backend.Redis.TimeoutMS < 0 {
			errs = multierr.Append(errs, fmt.Errorf("backend.redis.timeout_ms must not be negative"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("backend.type must be 'memory' or 'redis'"))
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format must be 'json' or 'text'"))
	}
	return errs
}
