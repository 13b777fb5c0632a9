package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Empty fields keep the current value.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	GRPCAddr            string         `json:"grpc_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	PasswordSecretKey   string         `json:"password_secret_key"`
	PasswordSecretFile  string         `json:"password_secret_file"`
	SigningAlgorithm    string         `json:"signing_algorithm"`
	SigningKey          string         `json:"signing_key"`
	SigningKeyFile      string         `json:"signing_key_file"`
	SigningKeyID        string         `json:"signing_key_id"`
	TokenTTL            timex.Duration `json:"token_ttl"`
	Issuer              string         `json:"issuer"`
	Audience            string         `json:"audience"`
	ClockSkew           timex.Duration `json:"clock_skew"`
	ExternalIssuer      string         `json:"external_issuer"`
	ExternalAudience    string         `json:"external_audience"`
	ExternalAlgorithm   string         `json:"external_algorithm"`
	ExternalJWKSURL     string         `json:"external_jwks_url"`
	JWKSRefreshInterval timex.Duration `json:"jwks_refresh_interval"`
	LogLevel            string         `json:"log_level"`
	LogFormat           string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every field it sets into config.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.PasswordSecretKey, c.PasswordSecretKey)
	setString(&config.PasswordSecretFile, c.PasswordSecretFile)
	setString(&config.SigningAlgorithm, c.SigningAlgorithm)
	setString(&config.SigningKey, c.SigningKey)
	setString(&config.SigningKeyFile, c.SigningKeyFile)
	setString(&config.SigningKeyID, c.SigningKeyID)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.ExternalIssuer, c.ExternalIssuer)
	setString(&config.ExternalAudience, c.ExternalAudience)
	setString(&config.ExternalAlgorithm, c.ExternalAlgorithm)
	setString(&config.ExternalJWKSURL, c.ExternalJWKSURL)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.TokenTTL.Duration != 0 {
		config.TokenTTL = c.TokenTTL.Duration
	}
	if c.ClockSkew.Duration != 0 {
		config.ClockSkew = c.ClockSkew.Duration
	}
	if c.JWKSRefreshInterval.Duration != 0 {
		config.JWKSRefreshInterval = c.JWKSRefreshInterval.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
