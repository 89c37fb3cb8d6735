package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"usersvc/internal/constants"
)

const minSecretLength = 32

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host" env:"USERSVC_HOST"`
	Port int    `yaml:"port" env:"USERSVC_PORT"`
	// CORS allow-list; empty means any origin.
	AllowedOrigins []string `yaml:"allowed_origins" env:"USERSVC_ALLOWED_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"USERSVC_DATABASE_PATH"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"USERSVC_JWT_SECRET"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"USERSVC_ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"USERSVC_REFRESH_TOKEN_TTL"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"USERSVC_BCRYPT_COST"`
}

// Load reads the YAML file at path, applies USERSVC_* environment overrides and
// validates the result. A missing signing key or token lifetime is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Fields without a matching variable keep their YAML value.
func (c *Config) applyEnvOverrides() error {
	return env.Parse(c)
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLength)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl is required")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl is required")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must not be shorter than auth.access_token_ttl")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "User Service"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/users.db"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = constants.DefaultBcryptCost
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
