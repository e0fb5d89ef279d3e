package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-portal/internal/api/http"
	"github.com/spec-kit/helpdesk-portal/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-portal/internal/assist"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/events"
	"github.com/spec-kit/helpdesk-portal/internal/observability"
	"github.com/spec-kit/helpdesk-portal/internal/persistence"
	"github.com/spec-kit/helpdesk-portal/internal/repository"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	"github.com/spec-kit/helpdesk-portal/internal/worker"
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
	categoryRepo := repository.NewCategoryRepository(pool)
	fieldRepo := repository.NewFieldRepository(pool)
	fieldValueRepo := repository.NewFieldValueRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	persistTimeout := cfg.App.PersistTimeout()

	schemaService := service.NewSchemaService(service.SchemaDependencies{
		FieldRepo:      fieldRepo,
		FieldValueRepo: fieldValueRepo,
		CategoryRepo:   categoryRepo,
		TicketRepo:     ticketRepo,
		Timeout:        persistTimeout,
	})
	catalogService := service.NewCatalogService(service.CatalogDependencies{
		CategoryRepo: categoryRepo,
		TicketRepo:   ticketRepo,
		Timeout:      persistTimeout,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     ticketRepo,
		CategoryRepo:   categoryRepo,
		UserRepo:       userRepo,
		HistoryRepo:    historyRepo,
		AttachmentRepo: attachmentRepo,
		Validator:      schemaService,
		Dispatcher:     dispatcher,
		Timeout:        persistTimeout,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		CommentRepo: commentRepo,
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Timeout:     persistTimeout,
	})
	satisfactionService := service.NewSatisfactionService(service.SatisfactionDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Timeout:     persistTimeout,
	})
	templateService := service.NewTemplateService(service.TemplateDependencies{
		TemplateRepo: templateRepo,
		TicketRepo:   ticketRepo,
		CategoryRepo: categoryRepo,
		UserRepo:     userRepo,
		Timeout:      persistTimeout,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: userRepo})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	assistClient := assist.NewClient(cfg.Assist, redis.Client, logger)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, assistClient),
		Users:  handlers.NewUsersHandler(authService),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsHandlerDeps{
			Lifecycle:    lifecycleService,
			Comments:     commentService,
			Satisfaction: satisfactionService,
			Schema:       schemaService,
			Catalog:      catalogService,
		}),
		StaffTickets: handlers.NewStaffTicketsHandler(handlers.StaffTicketsHandlerDeps{
			Lifecycle: lifecycleService,
			Comments:  commentService,
			Templates: templateService,
			Schema:    schemaService,
		}),
		Admin: handlers.NewAdminHandler(handlers.AdminHandlerDeps{
			Catalog:   catalogService,
			Schema:    schemaService,
			Templates: templateService,
		}),
		Assist:         handlers.NewAssistHandler(assistClient),
		AuthMiddleware: authMiddleware,
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
