// Package server wires the auth server: it selects the user store, builds
// the token, password, provider and reset collaborators from config, and
// runs the HTTP API and the gRPC health endpoint until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/logging"
	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/dmitrijs2005/jobtrack/internal/server/config"
	"github.com/dmitrijs2005/jobtrack/internal/server/httpapi"
	"github.com/dmitrijs2005/jobtrack/internal/server/mailer"
	"github.com/dmitrijs2005/jobtrack/internal/server/oauth"
	"github.com/dmitrijs2005/jobtrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/jobtrack/internal/server/resetledger"
	"github.com/dmitrijs2005/jobtrack/internal/server/services"

	gs "github.com/dmitrijs2005/jobtrack/internal/server/grpc"
)

const startupTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	authService *services.AuthService
	tokens      *auth.TokenCodec
	closers     []func() error
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.New(c.LogLevel, c.LogFormat, os.Stdout)
	app := &App{config: c, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	rm, db, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	app.tokens = auth.NewTokenCodec(auth.TokenConfig{
		Secret:     []byte(c.SecretKey),
		SessionTTL: c.SessionTokenValidityDuration,
		ResetTTL:   c.ResetTokenValidityDuration,
	})

	deps := services.AuthDeps{
		Users:  rm.Users(db),
		Tx:     rm.TxRunner(db),
		Hasher: auth.NewBcryptHasher(c.BcryptCost),
		Tokens: app.tokens,
		Provider: oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  c.GoogleRedirectURL(),
			Timeout:      c.ProviderTimeout,
		}),
		ResetLinkBase: c.AppURL + c.ResetPath,
		Logger:        logger,
	}

	if err := app.setupResetLedger(ctx, &deps); err != nil {
		app.Close()
		return nil, err
	}

	if c.ResendAPIKey != "" {
		m, err := mailer.NewResendMailer(mailer.ResendConfig{
			APIKey:  c.ResendAPIKey,
			From:    c.MailFrom,
			Timeout: c.ProviderTimeout,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("mailer init error: %w", err)
		}
		deps.Mailer = m
		logger.Info(ctx, "Reset links will be emailed")
	}

	if c.GoogleClientID == "" {
		logger.Warn(ctx, "GOOGLE_CLIENT_ID is not set, Google sign-in will fail")
	}

	app.authService = services.NewAuthService(deps)
	return app, nil
}

// openStore returns the repository manager and connection for the
// configured DSN, with migrations applied.
func (app *App) openStore(ctx context.Context) (repomanager.RepositoryManager, *sql.DB, error) {
	if app.config.DatabaseDSN == config.MemoryDSN {
		app.logger.Warn(ctx, "Using in-memory user store, data is lost on restart")
		return repomanager.NewMemoryRepositoryManager(), nil, nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, nil, fmt.Errorf("db migrations error: %w", err)
	}
	return rm, db, nil
}

func (app *App) setupResetLedger(ctx context.Context, deps *services.AuthDeps) error {
	c := app.config
	switch {
	case c.RedisAddr != "":
		r := resetledger.NewRedis(resetledger.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		deps.Ledger = r
		app.logger.Info(ctx, "Reset tokens are single-use", "ledger", "redis")
	case c.ResetSingleUseEnabled():
		deps.Ledger = resetledger.NewMemory()
		app.logger.Info(ctx, "Reset tokens are single-use", "ledger", "memory")
	}
	return nil
}

// AuthService exposes the wired service to in-process callers such as the
// admin CLI.
func (app *App) AuthService() *services.AuthService {
	return app.authService
}

// Close releases the store and ledger connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(context.Background(), "close error", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.authService, app.tokens, app.logger, app.config.ShutdownTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or one
// of the servers fails; either way both servers are stopped.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(ctx, "App stopped")
}
