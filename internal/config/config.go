package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Sensitive values can be
// overridden through environment variables after loading.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`

	Bidding struct {
		LockWaitMS int `yaml:"lock_wait_ms"`
	} `yaml:"bidding"`

	Closer struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"closer"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Database.Path = "auction.db"
	cfg.Auth.JWTSecret = "auction-secret-key"
	cfg.Auth.TokenTTL = 24
	cfg.Bidding.LockWaitMS = 2000
	cfg.Closer.IntervalSec = 30
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads and parses the configuration file at path, falling back to
// defaults for zero-valued fields, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			overrideWithEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Bidding.LockWaitMS <= 0 {
		return fmt.Errorf("bid lock wait must be positive")
	}
	if c.Closer.IntervalSec <= 0 {
		return fmt.Errorf("closer interval must be positive")
	}
	return nil
}

// LockWait returns the bounded wait for the per-auction bid lock.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Bidding.LockWaitMS) * time.Millisecond
}

// CloserInterval returns the auction close processor tick interval.
func (c *Config) CloserInterval() time.Duration {
	return time.Duration(c.Closer.IntervalSec) * time.Second
}

// TokenTTL returns the JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL) * time.Hour
}

// overrideWithEnv replaces settings for which an environment variable is set.
func overrideWithEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if path := os.Getenv("AUCTION_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if secret := os.Getenv("AUCTION_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if level := os.Getenv("AUCTION_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
