// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures server-level configuration.
type Config struct {
	Addr            string
	PostgresDSN     string
	Redis           RedisConfig
	KafkaBrokers    []string
	AuditTopic      string
	AdminJWTKey     string
	PolicyFile      string
	RetentionFile   string
	PolicyCacheTTL  time.Duration
	RetentionLease  time.Duration
	DefaultGrantTTL time.Duration
}

// RedisConfig holds connection settings for the optional Redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads configuration from the environment, applying development
// defaults where values are unset.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("CONSENTRY_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("CONSENTRY_POSTGRES_DSN"),
		KafkaBrokers:    splitNonEmpty(os.Getenv("CONSENTRY_KAFKA_BROKERS")),
		AuditTopic:      envOr("CONSENTRY_AUDIT_TOPIC", "consentry.audit"),
		AdminJWTKey:     envOr("CONSENTRY_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),
		PolicyFile:      os.Getenv("CONSENTRY_POLICY_FILE"),
		RetentionFile:   os.Getenv("CONSENTRY_RETENTION_SCHEDULE_FILE"),
		PolicyCacheTTL:  envDuration("CONSENTRY_POLICY_CACHE_TTL", 5*time.Minute),
		RetentionLease:  envDuration("CONSENTRY_RETENTION_LEASE_TTL", 10*time.Minute),
		DefaultGrantTTL: envDuration("CONSENTRY_DEFAULT_GRANT_TTL", 0),
	}
	cfg.Redis = RedisConfig{
		URL:          os.Getenv("CONSENTRY_REDIS_URL"),
		PoolSize:     envInt("CONSENTRY_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("CONSENTRY_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("CONSENTRY_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("CONSENTRY_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("CONSENTRY_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
