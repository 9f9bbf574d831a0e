package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT" validate:"required|isNumber"`
	Env                string        `mapstructure:"ENV" validate:"required|in:development,test,production"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER" validate:"required|in:memory,leveldb,redis,postgres"`
	LevelDBPath        string        `mapstructure:"LEVELDB_PATH"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	EncryptionKey      string        `mapstructure:"ENCRYPTION_KEY"`
	StoreCompression   bool          `mapstructure:"STORE_COMPRESSION"`
	HealthPlatform     string        `mapstructure:"HEALTH_PLATFORM" validate:"required|in:ios,android,healthkit,commonhealth,none"`
	PermissionLatency  time.Duration `mapstructure:"PERMISSION_LATENCY"`
	DeliveryMode       string        `mapstructure:"DELIVERY_MODE" validate:"required|in:mock,http"`
	DeliveryEndpoint   string        `mapstructure:"DELIVERY_ENDPOINT"`
	DeliverySecret     string        `mapstructure:"DELIVERY_SECRET"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER" validate:"required"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthPasswordHash   string        `mapstructure:"AUTH_PASSWORD_HASH"`
	AuthTokenTTL       time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	MetricsEnabled     bool          `mapstructure:"METRICS_ENABLED"`
	IdempotencyCacheMB int           `mapstructure:"IDEMPOTENCY_CACHE_MB" validate:"min:0"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	ShareRateLimitRPS  float64       `mapstructure:"SHARE_RATE_LIMIT_RPS"`
	ShareRateBurst     int           `mapstructure:"SHARE_RATE_BURST" validate:"min:1"`
}

// MinIdempotencyCacheMB is the smallest idempotency cache that holds a full
// share response. freecache caps an entry at 1/1024 of its size, so 16 MB
// allows 16 KB entries.
const MinIdempotencyCacheMB = 16

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "LEVELDB_PATH", "REDIS_URL", "DATABASE_URL",
	"ENCRYPTION_KEY", "STORE_COMPRESSION", "HEALTH_PLATFORM", "PERMISSION_LATENCY",
	"DELIVERY_MODE", "DELIVERY_ENDPOINT", "DELIVERY_SECRET", "AUTH_ISSUER",
	"AUTH_SIGNING_KEY", "AUTH_PASSWORD_HASH", "AUTH_TOKEN_TTL", "CORS_ORIGINS",
	"METRICS_ENABLED", "IDEMPOTENCY_CACHE_MB", "BODY_LIMIT", "SHARE_RATE_LIMIT_RPS",
	"SHARE_RATE_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("LEVELDB_PATH", "data/healthshare")
	v.SetDefault("HEALTH_PLATFORM", "ios")
	v.SetDefault("DELIVERY_MODE", "mock")
	v.SetDefault("AUTH_ISSUER", "healthshare")
	v.SetDefault("AUTH_TOKEN_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("IDEMPOTENCY_CACHE_MB", 32)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("SHARE_RATE_LIMIT_RPS", 0.1)
	v.SetDefault("SHARE_RATE_BURST", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks field rules and the settings each driver and mode needs.
// Production requires encryption at rest and a real token signing key.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}

	switch c.StoreDriver {
	case "leveldb":
		if c.LevelDBPath == "" {
			return fmt.Errorf("LEVELDB_PATH is required when STORE_DRIVER is leveldb")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_DRIVER is redis")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	}

	if c.DeliveryMode == "http" {
		if c.DeliveryEndpoint == "" {
			return fmt.Errorf("DELIVERY_ENDPOINT is required when DELIVERY_MODE is http")
		}
		if c.DeliverySecret == "" {
			return fmt.Errorf("DELIVERY_SECRET is required when DELIVERY_MODE is http")
		}
	}

	if c.IdempotencyCacheMB > 0 && c.IdempotencyCacheMB < MinIdempotencyCacheMB {
		return fmt.Errorf("IDEMPOTENCY_CACHE_MB must be 0 or at least %d, got %d", MinIdempotencyCacheMB, c.IdempotencyCacheMB)
	}

	if c.IsProduction() {
		if c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production")
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters in production")
		}
	}
	if c.EncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	return nil
}

// SigningKey returns the JWT signing key. Development falls back to a fixed
// key so tokens survive restarts.
func (c *Config) SigningKey() []byte {
	if c.AuthSigningKey == "" && !c.IsProduction() {
		return []byte("healthshare-development-signing-key")
	}
	return []byte(c.AuthSigningKey)
}
