// Package app assembles the service from configuration and runs its
// long-lived components.
package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk-routing/internal/api/http"
	"github.com/spec-kit/helpdesk-routing/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-routing/internal/ai"
	"github.com/spec-kit/helpdesk-routing/internal/auth"
	"github.com/spec-kit/helpdesk-routing/internal/config"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/notify"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
	"github.com/spec-kit/helpdesk-routing/internal/persistence"
	"github.com/spec-kit/helpdesk-routing/internal/ratelimit"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
	"github.com/spec-kit/helpdesk-routing/internal/service"
	"github.com/spec-kit/helpdesk-routing/internal/worker"
)

const sweepTimeout = 30 * time.Minute

// App holds the wired services and their infrastructure.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Producer  events.Producer
	Forwarder *events.Forwarder

	Dispatcher    events.Dispatcher
	Queue         *notify.Queue
	Tickets       *service.TicketService
	Users         *service.UserService
	Workflow      *service.AssignmentWorkflow
	Sweeper       *service.SLASweeper
	Notifications *service.NotificationWorkflows
	Runner        *worker.WorkflowRunner
	Tokens        *auth.TokenManager
}

// New connects to the stores and wires every service. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if pool := pg.PoolHandle(); cfg.Postgres.RunMigrations && pool != nil {
		if err := persistence.RunMigrations(ctx, pool, os.DirFS(cfg.Postgres.MigrationsDir), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}
	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Postgres:   pg,
		Redis:      rdb,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Queue:      notify.NewQueue(rdb.Client, cfg.Notification.QueueKey),
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes),
	}

	if cfg.Kafka.Enabled() {
		producer, err := events.NewProducer(cfg.Kafka)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Producer = producer
		a.Forwarder = events.NewForwarder(events.ForwarderOptions{
			Producer: producer,
			Topic:    cfg.Kafka.EventsTopic,
			Logger:   logger,
		})
		a.Forwarder.Subscribe(a.Dispatcher)
		a.Forwarder.Start()
		logger.Info("forwarding ticket events to kafka", zap.String("topic", cfg.Kafka.EventsTopic))
	}

	var analyzer ai.Analyzer = ai.Disabled{}
	if cfg.AI.Enabled() {
		analyzer = ai.NewOpenAIAnalyzer(cfg.AI)
	} else {
		logger.Warn("OPENAI_API_KEY not set; tickets get the default analysis")
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	service.NewHistoryRecorder(historyRepo, logger).Subscribe(a.Dispatcher)

	a.Notifications = service.NewNotificationWorkflows(service.NotificationDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Notifier:   a.Queue,
		Dispatcher: a.Dispatcher,
		Metrics:    a.Metrics,
		Logger:     logger,
	})
	a.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		UserRepo:      userRepo,
		HistoryRepo:   historyRepo,
		Notifications: a.Notifications,
		Dispatcher:    a.Dispatcher,
		Logger:        logger,
	})
	a.Users = service.NewUserService(userRepo)
	a.Workflow = service.NewAssignmentWorkflow(service.WorkflowDependencies{
		TicketRepo:          ticketRepo,
		UserRepo:            userRepo,
		Analyzer:            analyzer,
		Notifier:            a.Queue,
		Dispatcher:          a.Dispatcher,
		Metrics:             a.Metrics,
		Logger:              logger,
		WorkloadConcurrency: cfg.Workflow.WorkloadConcurrency,
	})
	a.Sweeper = service.NewSLASweeper(service.SweepDependencies{
		TicketRepo:       ticketRepo,
		UserRepo:         userRepo,
		Notifier:         a.Queue,
		Dispatcher:       a.Dispatcher,
		Metrics:          a.Metrics,
		Logger:           logger,
		WarningThreshold: cfg.SLA.WarningThreshold(),
	})
	a.Runner = worker.NewWorkflowRunner(a.Workflow, cfg.Workflow, logger)
	return a, nil
}

// Close releases connections. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.Forwarder != nil {
		a.Forwarder.Close()
	}
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil && !errors.Is(err, events.ErrProducerClosed) {
			a.Logger.Warn("closing kafka producer", zap.Error(err))
		}
	}
	a.Redis.Close()
	a.Postgres.Close()
}

// NewHTTPServer builds the fiber app with middlewares and routes.
func (a *App) NewHTTPServer() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())

	limiter := ratelimit.New(a.Redis.Client, a.Config.RateLimit.Requests, a.Config.RateLimit.Window())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, map[string]handlers.Pinger{
			"postgres": a.Postgres,
			"redis":    a.Redis,
		}),
		Tickets:        handlers.NewTicketsHandler(a.Tickets, a.Workflow, a.Runner, a.Notifications),
		Users:          handlers.NewUsersHandler(a.Users),
		SLA:            handlers.NewSLAHandler(a.Sweeper),
		AuthMiddleware: auth.NewAuthMiddleware(a.Tokens),
		RateLimit:      httptransport.RateLimitMiddleware(limiter, a.Logger),
		Metrics:        a.Metrics,
	})
	return server
}

// Serve runs the HTTP server, workflow runner, notification worker, SLA
// scheduler and, when kafka is configured, the ticket-created consumer. It
// returns when ctx is cancelled or any component fails.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	scheduler := worker.NewScheduler(a.Logger)
	if _, err := scheduler.AddSweep(cfg.SLA.SweepSchedule, a.Sweeper, sweepTimeout); err != nil {
		return err
	}

	sender := notify.NewEmailSender(cfg.Notification, nil, a.Logger)
	notifications := worker.NewNotificationWorker(worker.NotificationWorkerOptions{
		Redis:      a.Redis.Client,
		QueueKey:   a.Queue.Key(),
		Sender:     sender,
		MaxRetries: cfg.Notification.MaxRetries,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	})

	server := a.NewHTTPServer()
	a.Runner.Start()
	defer a.Runner.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return server.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down http server")
		return server.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error { return notifications.Run(gctx) })
	if cfg.Kafka.Enabled() {
		reader := worker.NewTicketCreatedReader(cfg.Kafka)
		consumer := worker.NewTicketConsumer(reader, a.Runner, a.Logger)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
