package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "customer-service/docs"
	"customer-service/internal/api"
	"customer-service/internal/api/middleware"
	"customer-service/internal/batch"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/database/memory"
	"customer-service/internal/infrastructure/database/postgres"
	"customer-service/internal/infrastructure/logging"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// appResources holds everything that must be released on shutdown. Nil fields are skipped.
type appResources struct {
	dbPool      *pgxpool.Pool
	rabbitConn  *amqp.Connection
	redisClient *redis.Client
	rateLimiter *middleware.RateLimiterMiddleware
}

// @title Customer Service API
// @version 1.0
// @description REST API for managing customers and their postal addresses.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	var res appResources
	repo, dbPool, err := initializeStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize customer store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	res.dbPool = dbPool

	var eventPublisher event.EventPublisher
	res.rabbitConn, eventPublisher = setupRabbitMQ(cfg, logger)
	res.redisClient = initializeRedisClient(cfg, logger)
	res.rateLimiter = initializeRateLimiter(cfg, res.redisClient, logger)

	customerService := customer.NewCustomerService(repo, eventPublisher, logger)
	statsJob := batch.NewCustomerStatsJob(repo, logger)

	cronScheduler := startBatchJobs(cfg, logger, statsJob)
	router := api.SetupRouter(res.rateLimiter, customerService, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, res, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed(), "driver", cfg.Database.Driver)

	return cfg, logger
}

// initializeStore returns the customer repository selected by database.driver.
// The pool is nil for the memory driver.
func initializeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (customer.CustomerRepository, *pgxpool.Pool, error) {
	switch cfg.Database.Driver {
	case driverMemory:
		logger.Info("Using in-memory customer store; data is lost on restart.")
		repo, err := memory.NewCustomerRepository(logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil

	case driverPostgres, "":
		logger.Info("Initializing database connection pool...")
		dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.MigrateOnBoot {
			if err := postgres.EnsureSchema(ctx, dbPool, logger); err != nil {
				dbPool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewCustomerRepository(dbPool, logger), dbPool, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func initializeRateLimiter(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *middleware.RateLimiterMiddleware {
	var store redis.Cmdable
	if redisClient != nil {
		store = redisClient
	}
	return middleware.NewRateLimiterMiddleware(cfg.Server.RateLimit, store, logger)
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, res appResources,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	shutdownHTTPServer(srv, serverErrors, logger)
	stopCronScheduler(cronScheduler, logger)
	if res.rateLimiter != nil {
		res.rateLimiter.Close()
	}
	closeRabbitMQConnection(res.rabbitConn, logger)
	closeRedisClient(res.redisClient, logger)
	closeDatabase(res.dbPool, logger)

	logger.Info("Application shutdown process complete.")
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) string {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited"
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	if cronScheduler == nil {
		return
	}
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	if dbPool == nil {
		return
	}
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, statsJob *batch.CustomerStatsJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	if _, err := batch.Schedule(c, cfg.Batch.StatsSchedule, cfg.Batch.StatsTimeout, "CustomerStats", statsJob, logger); err != nil {
		logger.Error("Failed to schedule customer stats job", slog.Any("error", err))
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

// rabbitMQURI builds the broker URI. An empty string means publishing is not configured.
func rabbitMQURI(cfg config.RabbitMQConfig) (string, error) {
	if cfg.Host == "" {
		return "", nil
	}
	port := cfg.Port
	if port == 0 {
		port = 5672
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return "", fmt.Errorf("RabbitMQ username and password must be provided together")
	}
	if cfg.Username != "" {
		return fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, port), nil
	}
	return fmt.Sprintf("amqp://%s:%d/", cfg.Host, port), nil
}

// setupRabbitMQ connects the event publisher. Any failure degrades to a no-op publisher
// so the HTTP API keeps serving without a broker.
func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.EventPublisher) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ publishing disabled, customer events are dropped.")
		return nil, event.NopPublisher{}
	}

	uri, err := rabbitMQURI(cfg.RabbitMQ)
	if err != nil || uri == "" {
		logger.Error("RabbitMQ is enabled but not configured", "error", err)
		return nil, event.NopPublisher{}
	}

	conn, err := connectRabbitMQ(uri, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		return nil, event.NopPublisher{}
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to create RabbitMQ event publisher", "error", err)
		_ = conn.Close()
		return nil, event.NopPublisher{}
	}
	return conn, publisher
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	dial := func() error {
		var err error
		conn, err = amqp.Dial(uri)
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Failed to connect to RabbitMQ, retrying...", slog.Any("error", err), "retry_in", wait)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	if err := backoff.RetryNotify(dial, backoff.WithMaxRetries(policy, 4), notify); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("Successfully connected to RabbitMQ")

	go func() {
		blockChan := conn.NotifyBlocked(make(chan amqp.Blocking, 1))
		closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case b := <-blockChan:
			logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
		case e := <-closeChan:
			if e != nil {
				logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
			}
		}
	}()

	return conn, nil
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
		return
	}
	if rabbitConn.IsClosed() {
		logger.Info("RabbitMQ connection already closed, skipping close.")
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := rabbitConn.Close(); err != nil {
		logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
	}
}

// initializeRedisClient returns nil when redis.addr is unset; rate limiting then stays in-process.
func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Info("Redis address not configured, using in-process rate limiting.")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis, using in-process rate limiting", "error", err, "addr", cfg.Redis.Addr)
		_ = rdb.Close()
		return nil
	}

	logger.Info("Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	}
}
