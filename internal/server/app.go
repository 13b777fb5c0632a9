// Package server wires configuration, storage, the auth core and both
// transports together and runs them until the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	store  *repomanager.Store
	guard  *auth.Guard
	users  *services.UserService
}

// NewApp loads configuration from args and the environment, opens storage
// and builds the auth core. The caller must Close the app.
func NewApp(ctx context.Context, args []string, logOut io.Writer) (*App, error) {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)

	secret, err := cfg.PasswordSecret()
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}

	store, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "storage ready", "backend", store.Backend)

	users := services.NewUserService(store.Users, cryptox.NewHasher(cryptox.DefaultParams()), secret, codec, cfg.TokenTTL, logger)

	return &App{
		config: cfg,
		logger: logger,
		store:  store,
		guard:  auth.NewGuard(codec),
		users:  users,
	}, nil
}

// NewCodec builds the token codec: the local signer always, plus the
// external issuer when one is configured.
func NewCodec(cfg *config.Config) (*auth.Codec, error) {
	key, err := cfg.SigningKeyMaterial()
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(cfg.SigningAlgorithm, key, cfg.SigningKeyID, cfg.Issuer, config.Audiences(cfg.Audience))
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{auth.WithSigner(signer), auth.WithLeeway(cfg.ClockSkew)}
	if cfg.ExternalIssuer != "" {
		opts = append(opts, auth.WithIssuer(auth.Issuer{
			Name:      cfg.ExternalIssuer,
			Audience:  config.Audiences(cfg.ExternalAudience),
			Algorithm: cfg.ExternalAlgorithm,
			Keys:      auth.NewRemoteKeySet(cfg.ExternalJWKSURL, auth.WithRefreshInterval(cfg.JWKSRefreshInterval)),
		}))
	}
	return auth.NewCodec(opts...), nil
}

func (app *App) Close() error {
	return app.store.Close()
}

func (app *App) ping(ctx context.Context) error {
	if app.store.DB == nil {
		return nil
	}
	return app.store.DB.PingContext(ctx)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr: app.config.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Users:  app.users,
			Guard:  app.guard,
			Logger: app.logger,
			Ping:   app.ping,
			Debug:  app.config.LogLevel == "debug",
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.guard)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and, when an address is configured, gRPC until ctx is
// cancelled or a signal arrives. A failing server stops the other one.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
}
