// Package server wires the AuthKeeper authority together: it opens the
// database, picks the refresh token store, builds the services and runs the
// gRPC and HTTP transports until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/redisx"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const dbPingTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        logging.Logger
	closers       []io.Closer
	authService   *services.AuthService
	userService   *services.UserService
	uploadService *services.UploadService
}

// NewApp opens every backing store named by c and runs migrations. Stores
// opened before a failure are closed again.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app = &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)

	switch c.RefreshStore {
	case config.RefreshStoreMemory:
		logger.Warn(ctx, "using in-memory user and refresh token store")
		rm = repomanager.NewMemoryRepositoryManager()
	default:
		db, err = dbx.Open(ctx, "pgx", c.DatabaseDSN, dbPingTimeout)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db)

		var opts []repomanager.Option
		if c.RefreshStore == config.RefreshStoreRedis {
			client, err := redisx.Connect(ctx, c.RedisURL, redisx.Options{RetryAttempts: 3, RetryInterval: time.Second})
			if err != nil {
				return nil, fmt.Errorf("redis init error: %w", err)
			}
			app.closers = append(app.closers, client)
			opts = append(opts, repomanager.WithRefreshTokens(refreshtokens.NewRedisRepository(client, auth.RefreshTokenValidity)))
		}

		pm := repomanager.NewPostgresRepositoryManager(opts...)
		if err = pm.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		rm = pm
	}

	signer, err := auth.NewSigner(auth.SignerConfig{Secret: []byte(c.SecretKey), Issuer: c.Issuer})
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewPasswordHasher(c.BcryptCost)
	if err != nil {
		return nil, err
	}

	app.authService = services.NewAuthService(db, rm, signer, hasher, c, logger)
	app.userService = services.NewUserService(db, rm, logger)
	app.uploadService = services.NewUploadService(c, logger)

	logger.Info(ctx, "app initialized", "refresh_store", c.RefreshStore)
	return app, nil
}

// Close releases the database and Redis connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(context.Background(), "close error", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	app.logger.Info(ctx, "gRPC server listening", "address", app.config.EndpointAddrGRPC)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	api := httpapi.NewAPI(app.authService, app.userService, app.uploadService, app.logger)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, api.Router(), app.logger)

	app.logger.Info(ctx, "HTTP server listening", "address", app.config.EndpointAddrHTTP)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled, a signal arrives or
// either transport fails, then waits for both to stop.
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
	app.logger.Info(context.Background(), "app stopped")
}
