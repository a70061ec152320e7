package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized alongside the YAML file.
const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTExpiry     = "JWT_EXPIRY"
	EnvEncryptionKey = "ENCRYPTION_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvGoogleAIKey   = "GOOGLE_AI_API_KEY"
	EnvRedisAddr     = "REDIS_ADDR"
)

// ErrMissingDatabaseDSN indicates no database DSN is present in the config.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database.dsn` in config file or DB_CONNECTION)")

// ErrMissingEncryptionKey indicates no key is available for BYOK encryption.
var ErrMissingEncryptionKey = errors.New("missing encryption key (set `encryption-key` in config file or ENCRYPTION_KEY)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig holds connection settings for realtime fan-out and rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ProviderKeys holds the platform-owned credentials per provider.
type ProviderKeys struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	Google    string `yaml:"google"`
}

// Config holds resolved application configuration. Components receive it (or
// sub-structs) at construction; there is no ambient global state.
type Config struct {
	DatabaseDSN string `yaml:"-"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT JWTConfig `yaml:"jwt"`

	// EncryptionKey is 64 hex characters (32 bytes) and underlies every stored
	// BYOK ciphertext. Rotating it invalidates all stored BYOK secrets.
	EncryptionKey string `yaml:"encryption-key"`

	ProviderKeys ProviderKeys `yaml:"provider-keys"`

	Redis RedisConfig `yaml:"redis"`

	// ProviderTimeout bounds a single upstream completion call.
	ProviderTimeout time.Duration `yaml:"provider-timeout"`

	// MessageRateLimit caps message sends per user per minute; 0 disables.
	MessageRateLimit int `yaml:"message-rate-limit"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = os.Getenv(EnvConfigPath)
	}
	if strings.TrimSpace(trimmed) == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file and applies environment overrides. A missing
// file is not an error as long as the environment supplies the required values.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	cfg.DatabaseDSN = strings.TrimSpace(cfg.Database.DSN)
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if cfg.DatabaseDSN == "" {
		return Config{}, ErrMissingDatabaseDSN
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}

	if key := strings.TrimSpace(os.Getenv(EnvEncryptionKey)); key != "" {
		cfg.EncryptionKey = key
	}
	if strings.TrimSpace(cfg.EncryptionKey) == "" {
		return Config{}, ErrMissingEncryptionKey
	}

	if key := strings.TrimSpace(os.Getenv(EnvOpenAIKey)); key != "" {
		cfg.ProviderKeys.OpenAI = key
	}
	if key := strings.TrimSpace(os.Getenv(EnvAnthropicKey)); key != "" {
		cfg.ProviderKeys.Anthropic = key
	}
	if key := strings.TrimSpace(os.Getenv(EnvGoogleAIKey)); key != "" {
		cfg.ProviderKeys.Google = key
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}

	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 60 * time.Second
	}
	return cfg, nil
}
