package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/triage-desk/internal/api/http"
	"github.com/spec-kit/triage-desk/internal/api/http/handlers"
	"github.com/spec-kit/triage-desk/internal/auth"
	"github.com/spec-kit/triage-desk/internal/config"
	"github.com/spec-kit/triage-desk/internal/events"
	"github.com/spec-kit/triage-desk/internal/observability"
	"github.com/spec-kit/triage-desk/internal/persistence"
	"github.com/spec-kit/triage-desk/internal/queue"
	"github.com/spec-kit/triage-desk/internal/repository"
	"github.com/spec-kit/triage-desk/internal/service"
	"github.com/spec-kit/triage-desk/internal/triage"
	"github.com/spec-kit/triage-desk/internal/webhook"
	"github.com/spec-kit/triage-desk/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	dispatcher := events.NewInMemoryDispatcher()

	directory := service.NewDirectoryService(userRepo, logger, metrics)
	userService := service.NewUserService(userRepo, logger)
	ticketService := service.NewTicketService(ticketRepo, dispatcher, logger)
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	producer := queue.NewRedisProducer(redis.Client, cfg.Triage.Stream, logger)
	scheduler := worker.NewScheduler(producer, logger)
	scheduler.RegisterHandlers(dispatcher)
	if _, err := scheduler.EnqueueSubmitted(ctx, ticketRepo); err != nil {
		logger.Warn("failed to re-enqueue untriaged tickets", zap.Error(err))
	}

	verifier, err := auth.NewJWTVerifier(cfg.Identity)
	if err != nil {
		logger.Fatal("failed to build credential verifier", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(verifier, directory, logger)

	var dedupe webhook.Deduper
	if ttl := cfg.Identity.WebhookDedupeTTL(); ttl > 0 {
		dedupe = webhook.NewRedisDeduper(redis.Client, ttl)
	}
	ingestor := webhook.NewIngestor(cfg.Identity.WebhookSecret, directory, dedupe, logger, metrics)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:               logger,
		Metrics:              metrics,
		Timeout:              cfg.App.RequestTimeout(),
		ExposeInternalErrors: cfg.App.IsDevelopment(),
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Webhooks:       handlers.NewWebhookHandler(ingestor),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware.Handle,
		Gatherer:       registry,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return app.Shutdown()
	})

	if cfg.Triage.WorkerEnabled {
		triageWorker, reclaimer, err := buildTriageWorker(gctx, cfg, redis, ticketRepo, assignments, dispatcher, logger, metrics)
		if err != nil {
			logger.Error("triage worker disabled", zap.Error(err))
		} else {
			g.Go(func() error { return triageWorker.Run(gctx) })
			g.Go(func() error { return reclaimer.Run(gctx) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", zap.Error(err))
		return
	}
	logger.Info("service stopped")
}

func buildTriageWorker(
	ctx context.Context,
	cfg *config.Config,
	redis *persistence.Redis,
	tickets repository.TicketRepository,
	assigner worker.Assigner,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*worker.TriageWorker, *worker.Reclaimer, error) {
	reasoner, err := triage.NewOpenAIReasoner(cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}

	consumer, err := queue.NewRedisConsumer(ctx, redis.Client, queue.ConsumerConfig{
		Stream:    cfg.Triage.Stream,
		Group:     cfg.Triage.Group,
		Consumer:  consumerName(),
		DLQStream: cfg.Triage.DLQStream,
		BatchSize: cfg.Triage.BatchSize,
		Block:     cfg.Triage.Block(),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	triageWorker := worker.NewTriageWorker(worker.TriageDependencies{
		Source:     consumer,
		TicketRepo: tickets,
		Analyzer:   triage.NewAnalyzer(reasoner, logger, metrics),
		Assigner:   assigner,
		Locker:     redis,
		Dispatcher: dispatcher,
		Logger:     logger,
	}, worker.Config{
		MaxAttempts: cfg.Triage.MaxAttempts,
		LockTTL:     cfg.Triage.LockTTL(),
	})
	reclaimer := worker.NewReclaimer(consumer, triageWorker, worker.ReclaimerConfig{
		MinIdle:   cfg.Triage.ReclaimIdle(),
		Interval:  cfg.Triage.ReclaimInterval(),
		BatchSize: cfg.Triage.BatchSize,
	}, logger)
	return triageWorker, reclaimer, nil
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "triage-desk"
	}
	return host + "-" + uuid.NewString()[:8]
}
