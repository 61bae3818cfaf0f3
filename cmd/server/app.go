package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/taskflow-api/internal/api"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/platform/redis"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	redisClient *goredis.Client
	dispatcher  *events.Dispatcher

	jwtService auth.JWTService
	engine     taskengine.Engine
	router     http.Handler
}

// newApplication wires stores, notifications, the engine and the router.
// The database connection must already be established.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))

	if cfg.Notifications.Enabled {
		app.redisClient, err = redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Notifications.RedisAddr,
			Password: cfg.Notifications.RedisPassword,
			DB:       cfg.Notifications.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notifications: %w", err)
		}
		emitter.RegisterHandler(redis.NewPublisher(app.redisClient, cfg.Notifications.ChannelPrefix, logger))
		logger.Info("Redis notification publisher initialized",
			slog.String("channel_prefix", cfg.Notifications.ChannelPrefix))
	}

	app.dispatcher = events.NewDispatcher(emitter, events.DispatcherConfig{
		QueueSize:   cfg.Notifications.QueueSize,
		WorkerCount: cfg.Notifications.WorkerCount,
	}, logger)

	app.engine, err = taskengine.NewEngine(
		postgres.NewTransactor(db, logger),
		assignment.NewServiceWithParams(cfg.Assignment.Params()),
		app.dispatcher,
		taskengine.Config{OperationTimeout: cfg.Assignment.OperationTimeout},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task engine: %w", err)
	}

	app.router = api.NewRouter(app.engine, app.jwtService, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the notification dispatcher and the HTTP server, and blocks
// until ctx is cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	app.dispatcher.Start()

	err := app.startHTTPServer(ctx, app.router)
	app.cleanup()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup drains pending notifications and releases connections.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if app.dispatcher != nil {
		if err := app.dispatcher.Stop(ctx); err != nil {
			app.logger.Error("Error draining notification queue", slog.String("error", err.Error()))
		}
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("Application shutdown completed")
}
