// Package config reads process configuration from the environment and
// optional .env files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// DefaultEnvFiles are loaded when present, later files winning.
var DefaultEnvFiles = []string{".env", ".env.local"}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string `env:"ARC_REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"ARC_REDIS_PASSWORD"`
	DB       int    `env:"ARC_REDIS_DB" envDefault:"0"`
	Prefix   string `env:"ARC_REDIS_PREFIX" envDefault:"arcflow:"`
}

// Configuration is the full process configuration.
type Configuration struct {
	Store        string `env:"ARC_STORE" envDefault:"file"`
	DataDir      string `env:"ARC_DATA_DIR" envDefault:".arcflow"`
	Redis        RedisOptions
	PolicyFile   string `env:"ARC_POLICY_FILE"`
	TemplatesDir string `env:"ARC_TEMPLATES_DIR"`
	AuthzPolicy  string `env:"ARC_AUTHZ_POLICY"`
	LogLevel     string `env:"ARC_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"ARC_LOG_FORMAT" envDefault:"text"`
	HTTPPort     int    `env:"ARC_HTTP_PORT" envDefault:"8080"`
	Metrics      bool   `env:"ARC_METRICS" envDefault:"true"`
	// EncryptionKey is a base64 AES-256 key sealing submitter contact
	// details at rest. Fallback keys allow rotation.
	EncryptionKey          string   `env:"ARC_ENCRYPTION_KEY"`
	EncryptionFallbackKeys []string `env:"ARC_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	// RedactPatterns are regular expressions masked out of comments and notes.
	RedactPatterns []string `env:"ARC_REDACT_PATTERNS" envSeparator:";"`
	// ActorID and ActorRole are the CLI caller when no flags are given.
	ActorID   string `env:"ARC_ACTOR_ID"`
	ActorRole string `env:"ARC_ACTOR_ROLE"`
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	// Overload lets .env.local override .env.
	return len(existing), godotenv.Overload(existing...)
}

// Load reads env files then parses and validates the environment.
func Load(envFiles ...string) (*Configuration, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the current environment only.
func Parse() (*Configuration, error) {
	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks enumerated and ranged values.
func (c *Configuration) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("ARC_STORE must be one of memory, file, redis; got '%s'", c.Store)
	}
	if c.Store == StoreRedis && c.Redis.Addr == "" {
		return fmt.Errorf("ARC_REDIS_ADDR is required when ARC_STORE is 'redis'")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("ARC_HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("ARC_LOG_FORMAT must be text or json; got '%s'", c.LogFormat)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Configuration) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug/info/warn/error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid ARC_LOG_LEVEL '%s'", s)
	}
	return l, nil
}
