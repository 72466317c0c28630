package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort      string
	GRPCPort      string
	StoreDriver   string
	DatabaseDSN   string
	RedisAddr     string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	SeedFile      string
	AllowSignup   bool
	LogLevel      string
	LogFormat     string
	WorkerCount   int
	QueueSize     int
	CommitRetries int
	LockTimeout   time.Duration
}

// Load reads configuration from the environment. Call godotenv first to pick up a .env file.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		DatabaseDSN: getEnv("DATABASE_DSN", "file:ledger.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		SeedFile:    getEnv("SEED_FILE", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.AllowSignup, err = getBool("ALLOW_SIGNUP", false); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = getDuration("LOCK_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 4); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.CommitRetries, err = getInt("COMMIT_RETRIES", 3); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, mysql, postgres; got %q", c.StoreDriver)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("invalid HTTP_PORT %q", c.HTTPPort)
	}
	if _, err := strconv.Atoi(c.GRPCPort); err != nil {
		return fmt.Errorf("invalid GRPC_PORT %q", c.GRPCPort)
	}
	if c.WorkerCount < 0 || c.QueueSize < 0 || c.CommitRetries < 0 {
		return fmt.Errorf("WORKER_COUNT, QUEUE_SIZE and COMMIT_RETRIES must not be negative")
	}
	switch c.LogFormat {
	case "text", "json", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be text, json or ecs; got %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
