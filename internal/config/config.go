// Package config loads service configuration from environment variables
// using the github.com/caarlos0/env library.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"go-auth-service"`
	Port    string `env:"PORT" envDefault:"8080"`
	Env     string `env:"ENV" envDefault:"DEV"`

	// SigningKey is the base64-encoded symmetric key for token signing,
	// owned by the deployment environment.
	SigningKey string `env:"JWT_SECRET_KEY,required"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	Redis RedisConfig `envPrefix:"REDIS_"`
	OIDC  OIDCConfig  `envPrefix:"OIDC_"`
}

// RedisConfig configures the session store backend.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// OIDCConfig configures the optional upstream provider for federated login.
// Federated login is disabled when the issuer is empty.
type OIDCConfig struct {
	ProviderName string `env:"PROVIDER_NAME" envDefault:"oidc"`
	Issuer       string `env:"ISSUER"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// Load parses the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] env.Parse")
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	if c.Port != "" && c.Port[0] == ':' {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// DecodeSigningKey decodes the base64-encoded signing key.
func (c *Config) DecodeSigningKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SigningKey)
	if err != nil {
		return nil, errors.Wrap(err, "[Config.DecodeSigningKey] invalid base64 signing key")
	}
	if len(key) == 0 {
		return nil, errors.New("[Config.DecodeSigningKey] signing key is empty")
	}
	return key, nil
}
