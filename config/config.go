package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"

	DirectoryDriverHTTP     = "http"
	DirectoryDriverPostgres = "postgres"

	minSecretKeyLength = 32
)

type Config struct {
	Server struct {
		Port            string        `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Database struct {
		Host           string `mapstructure:"host"`
		Port           string `mapstructure:"port"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		Name           string `mapstructure:"name"`
		SSLMode        string `mapstructure:"sslmode"`
		MigrationsPath string `mapstructure:"migrations_path"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	JWT struct {
		SecretKey       string            `mapstructure:"secret_key"`
		KeyID           string            `mapstructure:"key_id"`
		VerifyKeys      map[string]string `mapstructure:"verify_keys"`
		AccessTokenTTL  time.Duration     `mapstructure:"access_token_ttl"`
		RefreshTokenTTL time.Duration     `mapstructure:"refresh_token_ttl"`
		Issuer          string            `mapstructure:"issuer"`
		RotationEnabled bool              `mapstructure:"rotation_enabled"`
	} `mapstructure:"jwt"`
	Store struct {
		Driver        string        `mapstructure:"driver"`
		Retention     time.Duration `mapstructure:"retention"`
		PurgeInterval time.Duration `mapstructure:"purge_interval"`
	} `mapstructure:"store"`
	Directory struct {
		Driver  string        `mapstructure:"driver"`
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"directory"`
	Hasher struct {
		Timeout time.Duration `mapstructure:"timeout"`
		Cost    int           `mapstructure:"cost"`
	} `mapstructure:"hasher"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "auth")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "file://db/migrations")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.key_id", "")
	v.SetDefault("jwt.verify_keys", map[string]string{})
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "auth-service")
	v.SetDefault("jwt.rotation_enabled", true)

	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.retention", 24*time.Hour)
	v.SetDefault("store.purge_interval", time.Hour)

	v.SetDefault("directory.driver", DirectoryDriverHTTP)
	v.SetDefault("directory.base_url", "http://localhost:8081")
	v.SetDefault("directory.timeout", 5*time.Second)

	v.SetDefault("hasher.timeout", 5*time.Second)
	v.SetDefault("hasher.cost", bcrypt.DefaultCost)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from path, overlays environment variables
// (JWT_SECRET_KEY overrides jwt.secret_key) and validates the result.
// A missing config file is not an error; defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the token core cannot run with.
func (c *Config) Validate() error {
	if len(c.JWT.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("jwt.secret_key must be at least %d bytes", minSecretKeyLength)
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return errors.New("jwt.access_token_ttl must be positive")
	}
	if c.JWT.RefreshTokenTTL <= 0 {
		return errors.New("jwt.refresh_token_ttl must be positive")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("jwt.issuer is required")
	}
	for kid, secret := range c.JWT.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("jwt.verify_keys contains an empty key id")
		}
		if len(secret) < minSecretKeyLength {
			return fmt.Errorf("jwt.verify_keys[%q] must be at least %d bytes", kid, minSecretKeyLength)
		}
	}
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverRedis:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Directory.Driver {
	case DirectoryDriverHTTP, DirectoryDriverPostgres:
	default:
		return fmt.Errorf("unknown directory.driver %q", c.Directory.Driver)
	}
	if c.Directory.Timeout <= 0 {
		return errors.New("directory.timeout must be positive")
	}
	if c.Hasher.Timeout <= 0 {
		return errors.New("hasher.timeout must be positive")
	}
	// Expired records are kept for retention so redeem still reports them as expired.
	if c.Store.Retention <= 0 {
		return errors.New("store.retention must be positive")
	}
	if c.Store.PurgeInterval < 0 {
		return errors.New("store.purge_interval must not be negative")
	}
	return nil
}
