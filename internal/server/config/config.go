// Package config handles configuration for the server component,
// including a JSON overlay and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds runtime settings for the Meerkat server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx).
//   - SecretKey: HMAC secret for signing access tokens (HS256).
//   - Issuer / Audience: claims stamped into and verified on every access token.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - PasswordSalt / HashIterations: process-wide PBKDF2 parameters.
//
// Token, key, and hashing settings have no defaults: a Config that is
// missing any of them fails Validate and the process must not start.
type Config struct {
	EndpointAddr                 string
	DatabaseDSN                  string
	SecretKey                    string
	Issuer                       string
	Audience                     string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	PasswordSalt                 string
	HashIterations               int
}

// LoadConfig builds a Config by overlaying values from an optional JSON file
// and then from command-line flags. The result is not validated; callers
// must check Validate before use.
func LoadConfig() *Config {
	cfg := &Config{EndpointAddr: ":8080"}
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports every missing or out-of-range setting at once so that a
// misconfigured deployment fails fast with a complete list.
func (c *Config) Validate() error {
	var missing []string

	if c.DatabaseDSN == "" {
		missing = append(missing, "database_dsn")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if c.Issuer == "" {
		missing = append(missing, "issuer")
	}
	if c.Audience == "" {
		missing = append(missing, "audience")
	}
	if c.AccessTokenValidityDuration <= 0 {
		missing = append(missing, "access_token_validity_duration")
	}
	if c.RefreshTokenValidityDuration <= 0 {
		missing = append(missing, "refresh_token_validity_duration")
	}
	if c.PasswordSalt == "" {
		missing = append(missing, "password_salt")
	}
	if c.HashIterations <= 0 {
		missing = append(missing, "hash_iterations")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.EndpointAddr == "" {
		return errors.New("endpoint address must not be empty")
	}
	return nil
}
