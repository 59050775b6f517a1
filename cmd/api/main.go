package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/guayoyo/loyalty-service/internal/api/http"
	"github.com/guayoyo/loyalty-service/internal/api/http/handlers"
	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/config"
	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/events"
	"github.com/guayoyo/loyalty-service/internal/observability"
	"github.com/guayoyo/loyalty-service/internal/persistence"
	"github.com/guayoyo/loyalty-service/internal/repository"
	"github.com/guayoyo/loyalty-service/internal/service"
	"github.com/guayoyo/loyalty-service/internal/tiers"
	"github.com/guayoyo/loyalty-service/internal/worker"
)

const (
	shutdownTimeout      = 15 * time.Second
	sessionSweepInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	catalog := tiers.Default()
	if cfg.Loyalty.TiersFile != "" {
		catalog, err = tiers.Load(cfg.Loyalty.TiersFile)
		if err != nil {
			logger.Fatal("failed to load tier catalog", zap.String("path", cfg.Loyalty.TiersFile), zap.Error(err))
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Remote, logger)
	if err != nil {
		logger.Fatal("failed to connect remote backend", zap.Error(err))
	}
	defer pg.Close()

	mode := cfg.Remote.Mode()
	if mode == domain.StoreModeRemote && cfg.Remote.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var store repository.AccountStore
	if mode == domain.StoreModeRemote {
		store = repository.NewPostgresAccountStore(pg.PoolHandle())
	} else {
		store = repository.NewKVAccountStore(redis.Client, repository.DefaultAccountsKey)
	}
	store = repository.Instrument(store, metrics)
	logger.Info("account store selected", zap.String("mode", string(mode)), zap.String("redis_addr", redis.Addr()))

	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokens := auth.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL())
	loyalty := service.NewLoyaltyService(service.Dependencies{
		Store:        store,
		Snapshots:    repository.NewRedisSessionStore(redis.Client, repository.DefaultSessionPrefix),
		Catalog:      catalog,
		Dispatcher:   dispatcher,
		Tokens:       tokens,
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: cfg.Loyalty.WriteTimeout(),
	})

	worker.StartSessionSweeper(ctx, loyalty, sessionSweepInterval, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, mode, loyalty, redis),
		Tiers:          handlers.NewTiersHandler(catalog),
		Accounts:       handlers.NewAccountsHandler(loyalty),
		AuthMiddleware: auth.NewSessionMiddleware(tokens),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Loyalty.WriteTimeout())
	defer drainCancel()
	worker.DrainPendingWrites(drainCtx, loyalty, logger)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
