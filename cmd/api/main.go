package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/engine"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/queue"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/triage"
	"github.com/spec-kit/triage-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	handlerRepo := repository.NewHandlerRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	stageResultRepo := repository.NewStageResultRepository(pool)
	incidentRepo := repository.NewIncidentRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	notificationService := service.NewNotificationService(cfg.Notification, logger)
	notificationService.RegisterHandlers(dispatcher)

	eng := engine.NewAnthropicEngine(engine.AnthropicConfig{
		APIKey:    cfg.Engine.APIKey,
		Model:     cfg.Engine.Model,
		MaxTokens: cfg.Engine.MaxTokens,
	})
	pipeline := triage.NewPipeline(eng, triage.DefaultStages(), logger)
	contextBuilder := triage.NewContextBuilder(incidentRepo, triage.DefaultOrgContext(), logger)
	resolver := triage.NewResolver(handlerRepo)

	processor := triage.NewProcessor(triage.ProcessorDependencies{
		TicketRepo:      ticketRepo,
		AuditRepo:       auditRepo,
		StageResultRepo: stageResultRepo,
		ContextBuilder:  contextBuilder,
		Pipeline:        pipeline,
		Resolver:        resolver,
		Notifier:        notificationService,
		Dispatcher:      dispatcher,
		Logger:          logger,
		HistoryLimit:    cfg.Triage.HistoryLimit,
	})

	triageQueue := queue.NewTriageQueue(redis.Client, cfg.Triage.QueueKey)
	triageWorker := worker.NewTriageWorker(triageQueue, processor, cfg.Triage.WorkerCount, logger)
	triageWorker.Start(ctx)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      ticketRepo,
		AuditRepo:       auditRepo,
		StageResultRepo: stageResultRepo,
		Queue:           triageQueue,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Roster:  handlers.NewRosterHandler(handlerRepo),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	triageWorker.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
