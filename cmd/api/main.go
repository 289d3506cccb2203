package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpline/escalation-service/internal/api/http"
	"github.com/helpline/escalation-service/internal/api/http/handlers"
	"github.com/helpline/escalation-service/internal/bus"
	"github.com/helpline/escalation-service/internal/config"
	"github.com/helpline/escalation-service/internal/embeddings"
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/observability"
	"github.com/helpline/escalation-service/internal/persistence"
	"github.com/helpline/escalation-service/internal/repository"
	"github.com/helpline/escalation-service/internal/service"
	"github.com/helpline/escalation-service/internal/worker"
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

	eventBus := bus.NewRedisBus(redis.Client)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	replyRepo := repository.NewReplyRepository(pool)
	factRepo := repository.NewFactRepository(pool)
	followupRepo := repository.NewFollowupRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)

	embedder := embeddings.NewHTTPEmbedder(cfg.Embeddings)
	dispatcher := events.NewInMemoryDispatcher()

	knowledgeService := service.NewKnowledgeService(factRepo, embedder, logger)
	notificationService := service.NewNotificationService(followupRepo, customerRepo, logger, cfg.Notification)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		ReplyRepo:  replyRepo,
		Dispatcher: dispatcher,
	}, logger)
	resolutionService := service.NewResolutionService(service.ResolutionDependencies{
		TicketRepo:    ticketRepo,
		ReplyRepo:     replyRepo,
		Facts:         knowledgeService,
		Notifier:      notificationService,
		Bus:           eventBus,
		AnswerChannel: cfg.Notification.AnswerChannel,
		Dispatcher:    dispatcher,
	}, logger)

	worker.StartNotificationWorker(notificationService, dispatcher)

	app := fiber.New()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets: handlers.NewTicketsHandler(ticketService, resolutionService),
		Facts:   handlers.NewFactsHandler(knowledgeService),
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
