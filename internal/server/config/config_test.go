package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, "sqlite:data/authkeeper.db", c.DatabaseDSN)
	assert.Equal(t, "HS256", c.SigningAlgorithm)
	assert.Equal(t, 15*time.Minute, c.TokenTTL)
	assert.Equal(t, 5*time.Second, c.ClockSkew)
	assert.Equal(t, "authkeeper", c.Issuer)
	assert.Equal(t, "authkeeper-api", c.Audience)
	assert.Equal(t, "RS256", c.ExternalAlgorithm)
	assert.Equal(t, 15*time.Minute, c.JWKSRefreshInterval)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_Layering(t *testing.T) {
	path := writeTempJSON(t, t.TempDir(), "cfg.json", map[string]any{
		"http_addr":    ":9000",
		"database_dsn": "memory",
		"token_ttl":    "30m",
		"log_level":    "debug",
	})
	t.Setenv(EnvPrefix+"HTTP_ADDR", ":9100")
	t.Setenv(EnvPrefix+"ISSUER", "from-env")

	cfg, err := LoadConfig([]string{"-c", path, "-i", "from-flag"})
	require.NoError(t, err)

	want := defaults()
	want.HTTPAddr = ":9100"
	want.DatabaseDSN = "memory"
	want.TokenTTL = 30 * time.Minute
	want.LogLevel = "debug"
	want.Issuer = "from-flag"

	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-t", "soon"})
	assert.Error(t, err)

	t.Setenv(EnvPrefix+"TOKEN_TTL", "not-a-duration")
	_, err = LoadConfig(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }},
		{"no dsn", func(c *Config) { c.DatabaseDSN = "" }},
		{"no password secret", func(c *Config) { c.PasswordSecretKey = "" }},
		{"no signing key", func(c *Config) { c.SigningKey = "" }},
		{"negative ttl", func(c *Config) { c.TokenTTL = -time.Second }},
		{"negative skew", func(c *Config) { c.ClockSkew = -time.Second }},
		{"issuer without jwks", func(c *Config) { c.ExternalIssuer = "https://idp" }},
		{"jwks without issuer", func(c *Config) { c.ExternalJWKSURL = "https://idp/jwks" }},
		{"no issuer", func(c *Config) { c.Issuer = "" }},
		{"blank issuer", func(c *Config) { c.Issuer = "  " }},
		{"no audience", func(c *Config) { c.Audience = "" }},
		{"only separators in audience", func(c *Config) { c.Audience = " , ," }},
		{"external issuer without audience", func(c *Config) {
			c.ExternalIssuer = "https://idp"
			c.ExternalJWKSURL = "https://idp/jwks"
		}},
		{"external issuer shadows local issuer", func(c *Config) {
			c.ExternalIssuer = c.Issuer
			c.ExternalAudience = "authkeeper-api"
			c.ExternalJWKSURL = "https://idp/jwks"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			err := c.Validate()
			assert.True(t, autherr.IsKind(err, autherr.ConfigurationError), "got %v", err)
		})
	}

	c := defaults()
	c.TokenTTL = 0
	c.SigningKey = ""
	c.SigningKeyFile = "/run/secrets/signing.pem"
	assert.NoError(t, c.Validate())

	c = defaults()
	c.ExternalIssuer = "https://idp"
	c.ExternalAudience = "authkeeper-api"
	c.ExternalJWKSURL = "https://idp/jwks"
	assert.NoError(t, c.Validate())
}

func TestSecrets(t *testing.T) {
	c := defaults()

	got, err := c.PasswordSecret()
	require.NoError(t, err)
	assert.Equal(t, []byte("passwordSecretKey"), got)

	keyFile := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("from-file\n"), 0o600))
	c.SigningKeyFile = keyFile

	got, err = c.SigningKeyMaterial()
	require.NoError(t, err)
	assert.Equal(t, []byte("from-file"), got)

	c.PasswordSecretFile = filepath.Join(t.TempDir(), "missing")
	_, err = c.PasswordSecret()
	assert.True(t, autherr.IsKind(err, autherr.ConfigurationError), "got %v", err)
}

func TestAudiences(t *testing.T) {
	assert.Nil(t, Audiences(""))
	assert.Nil(t, Audiences(" , "))
	assert.Equal(t, []string{"api"}, Audiences("api"))
	assert.Equal(t, []string{"api", "admin"}, Audiences("api,admin"))
	assert.Equal(t, []string{"api", "admin"}, Audiences(" api , ,admin, "))
}

func TestLoadConfig_AudienceListFromEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"AUDIENCE", "api,admin")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "admin"}, Audiences(cfg.Audience))
}
