// Package config provides server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Engine modes.
const (
	ModeLinear = "linear"
	ModeGraph  = "graph"
)

// devJWTSecret signs tokens in development when no secret is configured.
const devJWTSecret = "storyteller-dev-secret"

// Config holds all server configuration.
type Config struct {
	Addr         string
	Env          string
	DBPath       string // empty = resolved by the store
	JWTSecret    string
	CORSOrigins  []string
	MaxBodyBytes int64
	LogMode      string
	Engine       EngineConfig
	Redis        RedisConfig
}

// EngineConfig tunes the dialogue engine.
type EngineConfig struct {
	Mode          string
	SemanticCheck bool
	TurnTimeout   time.Duration
	GraphBatch    int
	Model         string // default model selector, empty = provider default
}

// RedisConfig selects the Redis-backed answer cache. Empty Addr keeps the
// cache in SQLite.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 = entries never expire
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:         getEnv("STORYTELLER_ADDR", ":8080"),
		Env:          strings.ToLower(getEnv("STORYTELLER_ENV", "development")),
		DBPath:       getEnv("STORYTELLER_DB", ""),
		JWTSecret:    getEnv("STORYTELLER_JWT_SECRET", ""),
		CORSOrigins:  splitList(getEnv("STORYTELLER_CORS_ORIGINS", "*")),
		MaxBodyBytes: int64(getEnvInt("STORYTELLER_MAX_BODY_BYTES", 64*1024)),
		Engine: EngineConfig{
			Mode:          strings.ToLower(getEnv("STORYTELLER_MODE", ModeLinear)),
			SemanticCheck: getEnvBool("STORYTELLER_SEMANTIC_CHECK", true),
			TurnTimeout:   getEnvDuration("STORYTELLER_TURN_TIMEOUT", 90*time.Second),
			GraphBatch:    getEnvInt("STORYTELLER_GRAPH_BATCH", 6),
			Model:         getEnv("STORYTELLER_MODEL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_ANSWER_TTL", 0),
		},
	}
	cfg.LogMode = getEnv("STORYTELLER_LOG_MODE", cfg.Env)

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("STORYTELLER_ADDR cannot be empty")
	}
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("STORYTELLER_ENV must be development or production, got %q", c.Env)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("STORYTELLER_JWT_SECRET is required in production")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("STORYTELLER_MAX_BODY_BYTES must be > 0")
	}
	if c.Engine.Mode != ModeLinear && c.Engine.Mode != ModeGraph {
		return fmt.Errorf("STORYTELLER_MODE must be %q or %q, got %q", ModeLinear, ModeGraph, c.Engine.Mode)
	}
	if c.Engine.TurnTimeout <= 0 {
		return fmt.Errorf("STORYTELLER_TURN_TIMEOUT must be > 0")
	}
	if c.Engine.GraphBatch < 2 {
		return fmt.Errorf("STORYTELLER_GRAPH_BATCH must be >= 2")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
