package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub-api/internal/config"
	"github.com/phrazzld/taskhub-api/internal/events"
	"github.com/phrazzld/taskhub-api/internal/notify"
	"github.com/phrazzld/taskhub-api/internal/platform/sqlstore"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
	"github.com/phrazzld/taskhub-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore   *sqlstore.TaskStore
	taskService service.TaskService

	// jwtService is nil when auth is disabled
	jwtService auth.JWTService

	eventEmitter *events.InMemoryEventEmitter
	notifier     *notify.Fanout
	processor    *task.Processor
}

type appOption func(*appOptions)

type appOptions struct {
	sinks []notify.Sink
}

// withSinks replaces the configured notification sinks.
func withSinks(sinks ...notify.Sink) appOption {
	return func(o *appOptions) {
		o.sinks = sinks
	}
}

// newApplication wires every component around an open database. On error
// everything it created is released; db stays with the caller.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	dialect sqlstore.Dialect,
	opts ...appOption,
) (*application, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}
	if err := app.wire(ctx, dialect, o); err != nil {
		app.releaseComponents()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

func (app *application) wire(ctx context.Context, dialect sqlstore.Dialect, o appOptions) error {
	cfg, logger := app.config, app.logger

	var err error
	if cfg.Auth.Enabled() {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	}

	app.taskStore = sqlstore.NewTaskStore(app.db, dialect, logger)
	app.eventEmitter = events.NewInMemoryEventEmitter(logger, events.WithStrictDelivery())

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.eventEmitter,
		logger,
		service.WithTxRetry(cfg.Database.TxRetryAttempts, sqlstore.IsTransientError),
	)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	if o.sinks != nil {
		app.notifier = notify.NewFanout(logger, o.sinks...)
	} else {
		app.notifier, err = notify.New(ctx, cfg.Notify, cfg.Server.ServiceName, logger)
		if err != nil {
			return fmt.Errorf("failed to create notification sinks: %w", err)
		}
	}
	logger.Info("notification sinks ready", "count", app.notifier.Len())

	app.processor, err = setupProcessor(app)
	if err != nil {
		return fmt.Errorf("failed to setup processor: %w", err)
	}

	app.eventEmitter.RegisterHandler(task.NewProcessingEventHandler(app.processor, logger))
	return nil
}

// setupProcessor creates and starts the background task processor.
func setupProcessor(app *application) (*task.Processor, error) {
	pcfg := app.config.Processor

	procCfg := task.ProcessorConfig{
		WorkerCount:            pcfg.WorkerCount,
		QueueSize:              pcfg.QueueSize,
		StuckTaskAge:           pcfg.StuckTaskAge(),
		StuckTaskCheckInterval: pcfg.StuckTaskCheckInterval(),
		FinalizeTimeout:        app.config.Server.ShutdownTimeout(),
	}
	if len(pcfg.PhaseDurationsMS) > 0 {
		procCfg.Phases = task.DelayPhases(pcfg.PhaseDurations()...)
	}

	processor, err := task.NewProcessor(app.taskService, app.notifier, procCfg, app.logger)
	if err != nil {
		return nil, err
	}

	if err := processor.Start(); err != nil {
		return nil, fmt.Errorf("failed to start processor: %w", err)
	}

	return processor, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// releaseComponents stops the processor and closes the sinks.
func (app *application) releaseComponents() {
	if app.processor != nil {
		app.processor.Stop()
	}

	if app.notifier != nil {
		if err := app.notifier.Close(); err != nil {
			app.logger.Error("error closing notification sinks", "error", err)
		}
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	app.releaseComponents()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
