package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/courier-portal/internal/api/http"
	"github.com/spec-kit/courier-portal/internal/api/http/handlers"
	"github.com/spec-kit/courier-portal/internal/auth"
	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/events"
	"github.com/spec-kit/courier-portal/internal/gateway"
	"github.com/spec-kit/courier-portal/internal/observability"
	"github.com/spec-kit/courier-portal/internal/persistence"
	"github.com/spec-kit/courier-portal/internal/service"
	"github.com/spec-kit/courier-portal/internal/session"
	"github.com/spec-kit/courier-portal/internal/token"
	"github.com/spec-kit/courier-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	metrics.Subscribe(dispatcher)

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Session)
	worker.StartNotificationWorker(notifications)

	backend := gateway.NewFromConfig(cfg.Backend, logger)
	codec := token.NewCodec(nil)

	var registry *session.Registry
	registry = session.NewRegistry(session.RegistryOptions{
		Factory: func(sid, deviceID string) *session.Manager {
			return session.NewManager(session.Options{
				ID:         sid,
				Store:      redis.TabStore(sid, cfg.Session.TabTTL()),
				Legacy:     pg.DeviceStore(deviceID),
				Gateway:    backend,
				Codec:      codec,
				Transport:  http.DefaultTransport,
				Notifier:   notifications.For(sid),
				Dispatcher: dispatcher,
				Logger:     logger,
			})
		},
		IdleTTL:       cfg.Session.TabTTL(),
		EvictSchedule: cfg.Session.IdleEvictEvery,
		OnCreate: func(string) {
			metrics.SetLiveSessions(registry.Len())
		},
		OnEvict: func(sid string) {
			notifications.Forget(sid)
			metrics.SetLiveSessions(registry.Len())
		},
		Logger: logger,
	})

	stopJanitor, err := worker.StartSessionJanitor(registry, logger)
	if err != nil {
		logger.Fatal("failed to start session janitor", zap.Error(err))
	}
	defer stopJanitor()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Session: handlers.NewSessionHandler(notifications, codec),
		Proxy:   handlers.NewProxyHandler(cfg.Backend.BaseURL, logger),
		Pages:   handlers.NewPagesHandler(),
		Tabs:    auth.NewSessionMiddleware(registry, cfg.Session),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
