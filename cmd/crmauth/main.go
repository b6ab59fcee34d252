package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/hash"
	httptransport "github.com/brightcrm/brightcrm-auth/internal/http"
	"github.com/brightcrm/brightcrm-auth/internal/http/handler"
	httpmiddleware "github.com/brightcrm/brightcrm-auth/internal/http/middleware"
	apimiddleware "github.com/brightcrm/brightcrm-auth/internal/middleware"
	"github.com/brightcrm/brightcrm-auth/internal/repository"
	"github.com/brightcrm/brightcrm-auth/internal/server"
	"github.com/brightcrm/brightcrm-auth/internal/service"
	"github.com/brightcrm/brightcrm-auth/internal/session"
	"github.com/brightcrm/brightcrm-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newUserRepository,
			newHasher,
			newSessionManager,
			service.NewAuthService,
			newDirectoryService,
			handler.NewAuthHandler,
			newAuthMiddleware,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newHasher(cfg config.Config) account.Hasher {
	return hash.NewBcrypt(cfg.BcryptCost)
}

func newSessionManager(cfg config.Config) *session.Manager {
	return session.NewManager(cfg.SessionSecret, cfg.ServiceName, cfg.SessionTTL)
}

func newDirectoryService(users repository.UserRepository) *service.DirectoryService {
	return service.NewDirectoryService(users)
}

func newAuthMiddleware(sessions *session.Manager, cfg config.Config) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Sessions: sessions, CookieName: cfg.SessionCookieName}
}

func newRateLimiter(lc fx.Lifecycle, cfg config.Config) *apimiddleware.RateLimiter {
	rl := apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			rl.Stop()
			return nil
		},
	})
	return rl
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
