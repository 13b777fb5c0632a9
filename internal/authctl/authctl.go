// Package authctl implements the operator command line: hashing a password
// the way the server stores it, minting a local token and inspecting one.
package authctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"golang.org/x/term"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

const usage = `usage:
  authctl hash   [server flags]                     hash a password read from the terminal
  authctl token  <subject> [-roles a,b] [-ttl 15m]  issue a token signed with the server key
  authctl verify <token>                            verify a token and print its claims

Server flags (-c, -p, -s, -k, -i ...) and AUTHKEEPER_* variables are read as by the server.
`

// App carries the writers for one invocation.
type App struct {
	out    io.Writer
	errOut io.Writer
}

func NewApp(out, errOut io.Writer) *App {
	return &App{out: out, errOut: errOut}
}

// Run executes args (without the program name) and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return ExitUsage
	}

	var err error
	switch args[0] {
	case "hash":
		err = a.hash(args[1:])
	case "token":
		if len(args) < 2 || strings.HasPrefix(args[1], "-") {
			fmt.Fprint(a.errOut, usage)
			return ExitUsage
		}
		err = a.token(args[1], args[2:])
	case "verify":
		if len(args) < 2 {
			fmt.Fprint(a.errOut, usage)
			return ExitUsage
		}
		err = a.verify(ctx, args[1], args[2:])
	case "help", "-h", "-help":
		fmt.Fprint(a.out, usage)
		return ExitOK
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", args[0], usage)
		return ExitUsage
	}

	if err != nil {
		if kind, ok := autherr.KindOf(err); ok {
			fmt.Fprintf(a.errOut, "error [%s]: %v\n", kind, err)
		} else {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
		}
		return ExitError
	}
	return ExitOK
}

func (a *App) hash(args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	secret, err := cfg.PasswordSecret()
	if err != nil {
		return err
	}

	if _, err := fmt.Fprint(a.errOut, "Enter password: "); err != nil {
		return err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.errOut)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(pw)

	encoded, err := cryptox.NewHasher(cryptox.DefaultParams()).Hash(string(pw), secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, encoded)
	return err
}

func (a *App) token(subject string, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	var (
		roles string
		ttl   time.Duration
	)
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.StringVar(&roles, "roles", "", "comma-separated roles")
	fs.DurationVar(&ttl, "ttl", cfg.TokenTTL, "token lifetime")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-roles", "-ttl"})); err != nil {
		return autherr.Wrap(autherr.InvalidInput, "parse token flags", err)
	}

	codec, err := server.NewCodec(cfg)
	if err != nil {
		return err
	}

	claims := auth.Claims{Subject: subject}
	if roles != "" {
		claims.Roles = strings.Split(roles, ",")
	}
	tok, err := codec.Issue(claims, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, tok)
	return err
}

type claimsOutput struct {
	Subject   string    `json:"sub"`
	Issuer    string    `json:"iss"`
	Audience  []string  `json:"aud,omitempty"`
	ID        string    `json:"jti,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	Roles     []string  `json:"roles,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
}

func (a *App) verify(ctx context.Context, token string, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	codec, err := server.NewCodec(cfg)
	if err != nil {
		return err
	}

	token, _ = strings.CutPrefix(token, common.BearerScheme+" ")
	claims, err := codec.Verify(ctx, token)
	if err != nil {
		return err
	}
	if claims == nil {
		return errors.New("verifier returned no claims")
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(claimsOutput{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
		Roles:     claims.Roles,
		Scopes:    claims.Scopes,
	})
}
