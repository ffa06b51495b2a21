package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/uniticket/internal/api/http"
	"github.com/spec-kit/uniticket/internal/api/http/handlers"
	"github.com/spec-kit/uniticket/internal/auth"
	"github.com/spec-kit/uniticket/internal/broker"
	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/config"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/observability"
	"github.com/spec-kit/uniticket/internal/persistence"
	"github.com/spec-kit/uniticket/internal/ratelimit"
	"github.com/spec-kit/uniticket/internal/repository"
	"github.com/spec-kit/uniticket/internal/repository/memstore"
	"github.com/spec-kit/uniticket/internal/service"
	"github.com/spec-kit/uniticket/internal/worker"
)

type stores struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	users    repository.UserRepository
}

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

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	clk := clock.Real()
	repos := buildStores(pg, clk)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	publisher := broker.Publisher(broker.Nop{})
	if cfg.Broker.URL != "" {
		rabbit, err := broker.NewRabbitPublisher(cfg.Broker.URL, cfg.Broker.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable; events stay in process", zap.Error(err))
		} else {
			publisher = rabbit
		}
	}
	defer publisher.Close() //nolint:errcheck

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, metrics, publisher))

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: repos.users})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		MessageRepo: repos.messages,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		TicketRepo:  repos.tickets,
		MessageRepo: repos.messages,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)
	limiter := ratelimit.New(cfg.RateLimit, redis.Client, logger)

	app := httptransport.NewApp(cfg.App.Name, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		ExposeErrors:   cfg.IsDevelopment(),
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Messages:       handlers.NewMessagesHandler(messageService),
		AuthMiddleware: authMiddleware,
		RateLimit:      limiter.Middleware(),
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildStores picks Postgres when a pool is configured and the in-memory
// store otherwise.
func buildStores(pg *persistence.Postgres, clk clock.Clock) stores {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return stores{
			tickets:  repository.NewTicketRepository(pool),
			messages: repository.NewMessageRepository(pool),
			users:    repository.NewUserRepository(pool),
		}
	}
	mem := memstore.New(clk)
	return stores{tickets: mem.Tickets(), messages: mem.Messages(), users: mem.Users()}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
