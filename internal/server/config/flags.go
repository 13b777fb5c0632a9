package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// serverFlags are the short flags parseFlags understands.
var serverFlags = []string{"-a", "-g", "-d", "-p", "-s", "-k", "-t", "-i", "-l"}

// parseFlags populates selected Config fields from args.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-g string     gRPC bind address, empty disables gRPC
//	-d string     database DSN
//	-p string     password hashing secret
//	-s string     token signing key (HMAC secret)
//	-k string     path to a signing key file (PEM for RS/PS/ES/EdDSA)
//	-t duration   access token lifetime (e.g. "15m")
//	-i string     token issuer
//	-l string     log level
//
// args is filtered with flagx.FilterArgs first, so flags meant for other
// components (such as -c) are skipped.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("authkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.PasswordSecretKey, "p", config.PasswordSecretKey, "password hashing secret")
	fs.StringVar(&config.SigningKey, "s", config.SigningKey, "token signing key")
	fs.StringVar(&config.SigningKeyFile, "k", config.SigningKeyFile, "token signing key file")
	fs.DurationVar(&config.TokenTTL, "t", config.TokenTTL, "access token lifetime")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
