package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/agent"
	"github.com/helpline/escalation-service/internal/bus"
	"github.com/helpline/escalation-service/internal/config"
	"github.com/helpline/escalation-service/internal/embeddings"
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/observability"
	"github.com/helpline/escalation-service/internal/persistence"
	"github.com/helpline/escalation-service/internal/registry"
	"github.com/helpline/escalation-service/internal/repository"
	"github.com/helpline/escalation-service/internal/service"
	"github.com/helpline/escalation-service/internal/worker"
)

// consoleSpeaker prints agent speech to stdout, standing in for the
// voice pipeline.
type consoleSpeaker struct{}

func (consoleSpeaker) Say(_ context.Context, text string, _ agent.SpeechOptions) error {
	fmt.Printf("agent> %s\n", text)
	return nil
}

func main() {
	displayName := flag.String("name", "", "display name for the session customer")
	flag.Parse()

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
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	eventBus := bus.NewRedisBus(redis.Client)
	waiter := registry.New(eventBus, cfg.Notification.AnswerChannel, logger)
	defer waiter.Close() //nolint:errcheck

	pool := pg.PoolHandle()
	customerRepo := repository.NewCustomerRepository(pool)
	embedder := embeddings.NewHTTPEmbedder(cfg.Embeddings)
	dispatcher := events.NewInMemoryDispatcher()

	knowledgeService := service.NewKnowledgeService(repository.NewFactRepository(pool), embedder, logger)
	notificationService := service.NewNotificationService(repository.NewFollowupRepository(pool), customerRepo, logger, cfg.Notification)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(pool),
		ReplyRepo:  repository.NewReplyRepository(pool),
		Dispatcher: dispatcher,
	}, logger)
	customerService := service.NewCustomerService(customerRepo)

	worker.StartNotificationWorker(notificationService, dispatcher)

	session, err := agent.BeginSession(ctx, customerService, *displayName, nil)
	if err != nil {
		logger.Fatal("failed to start session", zap.Error(err))
	}
	logger.Info("session started", zap.String("customer_id", session.CustomerID))

	flow := agent.NewFlow(agent.FlowDependencies{
		Oracle:  knowledgeService,
		Tickets: ticketService,
		Reader:  ticketService,
		Waiter:  waiter,
		Speaker: consoleSpeaker{},
	}, session, cfg.Agent, logger)

	fmt.Println("Ask a question (ctrl-d to quit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		result, err := flow.Answer(ctx, question)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			continue
		}

		switch result.State {
		case agent.StateAnswered:
			fmt.Printf("agent> %s\n", result.Answer)
		case agent.StateEscalated:
			ticketID := result.TicketID
			go func() {
				if _, _, err := flow.AwaitResolution(ctx, ticketID, 0); err != nil {
					logger.Warn("no resolution for ticket",
						zap.String("ticket_id", ticketID), zap.Error(err))
				}
			}()
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("stdin read failed", zap.Error(err))
	}
}
