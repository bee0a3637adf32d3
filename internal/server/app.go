// Package server initializes and runs the main application server.
// It wires up storage, Redis, authentication, rate limiting, and the HTTP
// endpoint, and handles graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/tasksync/internal/logging"
	"github.com/dmitrijs2005/tasksync/internal/server/auth"
	"github.com/dmitrijs2005/tasksync/internal/server/config"
	"github.com/dmitrijs2005/tasksync/internal/server/httpapi"
	"github.com/dmitrijs2005/tasksync/internal/server/ratelimit"
	"github.com/dmitrijs2005/tasksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tasksync/internal/server/services"
	"github.com/dmitrijs2005/tasksync/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  *storage.Postgres
	rdb    *redis.Client
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	store, err := storage.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	verifier := auth.NewVerifier([]byte(c.SecretKey), auth.NewRedisRevocations(rdb))
	limiter := ratelimit.NewLimiter(rdb, "ratelimit:")
	taskService := services.NewTaskService(store.Conn(), repomanager.NewPostgresRepositoryManager())
	srv := httpapi.New(c, logger, verifier, taskService, limiter)

	return &App{config: c, logger: logger, store: store, rdb: rdb, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
	if err := app.rdb.Close(); err != nil {
		app.logger.Error(ctx, "error closing redis", "error", err)
	}
}
