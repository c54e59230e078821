package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	LedgerBackendMemory   = "memory"
	LedgerBackendPostgres = "postgres"
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	Upstream      UpstreamConfig
	Quota         QuotaConfig
	Ledger        LedgerConfig
	DB            DBConfig
	Redis         RedisConfig
	NATS          NATSConfig
	Admin         AdminConfig
	CORS          CORSConfig
	RegisterLimit RegisterLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Format string
}

// UpstreamConfig points at the Frankfurter currency API.
type UpstreamConfig struct {
	Host    string
	Version string
	Timeout time.Duration
}

func (c UpstreamConfig) BaseURL() string {
	return fmt.Sprintf("https://%s/%s", c.Host, c.Version)
}

type QuotaConfig struct {
	InitialCredits int
	RateLimit      int
	RateWindow     time.Duration
}

type LedgerConfig struct {
	Backend        string
	MigrationsPath string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig enables usage event publishing when URL is set. When
// UsageConsumer is also set, a durable consumer of that name is ensured on
// startup.
type NATSConfig struct {
	URL           string
	UsageConsumer string
}

type AdminConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RegisterLimitConfig throttles POST /users/ per client IP.
type RegisterLimitConfig struct {
	Max       int
	WindowSec int
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		Upstream: UpstreamConfig{
			Host:    k.String("upstream.host"),
			Version: k.String("upstream.version"),
		},
		Quota: QuotaConfig{
			InitialCredits: k.Int("quota.initial.credits"),
			RateLimit:      k.Int("quota.rate.limit"),
		},
		Ledger: LedgerConfig{
			Backend:        k.String("ledger.backend"),
			MigrationsPath: k.String("ledger.migrations.path"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Enabled:  k.Bool("redis.enabled"),
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:           k.String("nats.url"),
			UsageConsumer: k.String("nats.usage.consumer"),
		},
		Admin: AdminConfig{
			JWTSecret: k.String("admin.jwt.secret"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		RegisterLimit: RegisterLimitConfig{
			Max:       k.Int("register.limit.max"),
			WindowSec: k.Int("register.limit.window.sec"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Upstream.Host == "" {
		cfg.Upstream.Host = "api.frankfurter.dev"
	}
	if cfg.Upstream.Version == "" {
		cfg.Upstream.Version = "v1"
	}
	if cfg.Quota.InitialCredits == 0 {
		cfg.Quota.InitialCredits = 10
	}
	if cfg.Quota.RateLimit == 0 {
		cfg.Quota.RateLimit = 10
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = LedgerBackendMemory
	}
	if cfg.Ledger.MigrationsPath == "" {
		cfg.Ledger.MigrationsPath = "migrations"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "fxgate"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "fxgate"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.RegisterLimit.Max == 0 {
		cfg.RegisterLimit.Max = 5
	}
	if cfg.RegisterLimit.WindowSec == 0 {
		cfg.RegisterLimit.WindowSec = 60
	}

	// Parse durations
	cfg.Upstream.Timeout, err = parseDuration(k, "upstream.timeout", "10s")
	if err != nil {
		return nil, err
	}
	cfg.Quota.RateWindow, err = parseDuration(k, "quota.rate.window", "1m")
	if err != nil {
		return nil, err
	}
	cfg.Admin.TokenExpiry, err = parseDuration(k, "admin.token.expiry", "24h")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	raw := k.String(key)
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
