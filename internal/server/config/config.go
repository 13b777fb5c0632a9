// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables and command-line
// flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "AUTHKEEPER_"

// Config holds runtime settings for the authkeeper server.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses; an empty GRPCAddr disables gRPC.
//   - DatabaseDSN: postgres://..., sqlite:<path> or memory.
//   - PasswordSecretKey: key mixed into every password hash.
//   - Signing*: algorithm and key for tokens this server issues. A key file
//     wins over an inline key.
//   - ExternalIssuer / ExternalJWKSURL: optional second issuer whose tokens
//     are verified against a remote JWKS document.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR"`
	GRPCAddr    string `env:"GRPC_ADDR"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	PasswordSecretKey  string `env:"PASSWORD_SECRET_KEY"`
	PasswordSecretFile string `env:"PASSWORD_SECRET_FILE"`

	SigningAlgorithm string        `env:"SIGNING_ALGORITHM"`
	SigningKey       string        `env:"SIGNING_KEY"`
	SigningKeyFile   string        `env:"SIGNING_KEY_FILE"`
	SigningKeyID     string        `env:"SIGNING_KEY_ID"`
	TokenTTL         time.Duration `env:"TOKEN_TTL"`
	Issuer           string        `env:"ISSUER"`
	Audience         string        `env:"AUDIENCE"`
	ClockSkew        time.Duration `env:"CLOCK_SKEW"`

	ExternalIssuer      string        `env:"EXTERNAL_ISSUER"`
	ExternalAudience    string        `env:"EXTERNAL_AUDIENCE"`
	ExternalAlgorithm   string        `env:"EXTERNAL_ALGORITHM"`
	ExternalJWKSURL     string        `env:"EXTERNAL_JWKS_URL"`
	JWKSRefreshInterval time.Duration `env:"JWKS_REFRESH_INTERVAL"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = "sqlite:data/authkeeper.db"
	c.PasswordSecretKey = "passwordSecretKey"
	c.SigningAlgorithm = "HS256"
	c.SigningKey = "secretKey"
	c.TokenTTL = 15 * time.Minute
	c.Issuer = "authkeeper"
	c.Audience = "authkeeper-api"
	c.ClockSkew = 5 * time.Second
	c.ExternalAlgorithm = "RS256"
	c.JWKSRefreshInterval = 15 * time.Minute
	c.LogLevel = "info"
	c.LogFormat = "console"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return autherr.New(autherr.ConfigurationError, "http address is required")
	case c.DatabaseDSN == "":
		return autherr.New(autherr.ConfigurationError, "database dsn is required")
	case c.PasswordSecretKey == "" && c.PasswordSecretFile == "":
		return autherr.New(autherr.ConfigurationError, "password secret key is required")
	case c.SigningKey == "" && c.SigningKeyFile == "":
		return autherr.New(autherr.ConfigurationError, "signing key is required")
	case c.TokenTTL < 0:
		return autherr.New(autherr.ConfigurationError, "token ttl must not be negative")
	case c.ClockSkew < 0:
		return autherr.New(autherr.ConfigurationError, "clock skew must not be negative")
	case strings.TrimSpace(c.Issuer) == "":
		return autherr.New(autherr.ConfigurationError, "token issuer is required")
	case len(Audiences(c.Audience)) == 0:
		return autherr.New(autherr.ConfigurationError, "token audience is required")
	case (c.ExternalIssuer == "") != (c.ExternalJWKSURL == ""):
		return autherr.New(autherr.ConfigurationError, "external issuer and jwks url must be set together")
	case c.ExternalIssuer != "" && len(Audiences(c.ExternalAudience)) == 0:
		return autherr.New(autherr.ConfigurationError, "external audience is required")
	case c.ExternalIssuer != "" && c.ExternalIssuer == c.Issuer:
		// both would be registered under the same iss value
		return autherr.New(autherr.ConfigurationError, "external issuer must differ from the local issuer")
	}
	return nil
}

// PasswordSecret returns the password hashing key, read from
// PasswordSecretFile when one is set.
func (c *Config) PasswordSecret() ([]byte, error) {
	return secret(c.PasswordSecretKey, c.PasswordSecretFile)
}

// SigningKeyMaterial returns the HMAC secret or PEM private key used to sign
// tokens, read from SigningKeyFile when one is set.
func (c *Config) SigningKeyMaterial() ([]byte, error) {
	return secret(c.SigningKey, c.SigningKeyFile)
}

// Audiences splits a comma separated audience setting into a claim list.
// Blank entries are dropped.
func Audiences(aud string) []string {
	var out []string
	for _, a := range strings.Split(aud, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func secret(inline, file string) ([]byte, error) {
	if file == "" {
		return []byte(inline), nil
	}
	b, err := filex.ReadSecret(file)
	if err != nil {
		return nil, autherr.Wrap(autherr.ConfigurationError, fmt.Sprintf("load secret from %s", file), err)
	}
	return b, nil
}
