package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"customer-service/internal/config"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/database/memory"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestInitializeApp(t *testing.T) {
	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
}

func TestInitializeStoreMemory(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: driverMemory}}

	repo, pool, err := initializeStore(context.Background(), cfg, testLogger)

	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.IsType(t, &memory.CustomerRepository{}, repo)
}

func TestInitializeStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}

	repo, pool, err := initializeStore(context.Background(), cfg, testLogger)

	assert.Error(t, err)
	assert.Nil(t, repo)
	assert.Nil(t, pool)
}

func TestInitializeStorePostgresWithoutURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: driverPostgres}}

	_, pool, err := initializeStore(context.Background(), cfg, testLogger)

	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestRabbitMQURI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RabbitMQConfig
		want    string
		wantErr bool
	}{
		{name: "no host", cfg: config.RabbitMQConfig{}, want: ""},
		{name: "host only uses default port", cfg: config.RabbitMQConfig{Host: "mq"}, want: "amqp://mq:5672/"},
		{name: "credentials", cfg: config.RabbitMQConfig{Host: "mq", Port: 5673, Username: "u", Password: "p"}, want: "amqp://u:p@mq:5673/"},
		{name: "username without password", cfg: config.RabbitMQConfig{Host: "mq", Username: "u"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rabbitMQURI(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupRabbitMQDisabledUsesNopPublisher(t *testing.T) {
	cfg := &config.Config{RabbitMQ: config.RabbitMQConfig{Enabled: false, Host: "localhost"}}

	conn, publisher := setupRabbitMQ(cfg, testLogger)

	assert.Nil(t, conn)
	assert.IsType(t, event.NopPublisher{}, publisher)
}

func TestSetupRabbitMQMisconfiguredUsesNopPublisher(t *testing.T) {
	cfg := &config.Config{RabbitMQ: config.RabbitMQConfig{Enabled: true, Host: "localhost", Username: "guest"}}

	conn, publisher := setupRabbitMQ(cfg, testLogger)

	assert.Nil(t, conn)
	assert.IsType(t, event.NopPublisher{}, publisher)
}

func TestInitializeRedisClientWithoutAddr(t *testing.T) {
	cfg := &config.Config{}

	assert.Nil(t, initializeRedisClient(cfg, testLogger))
}

func TestInitializeRateLimiterWithoutRedis(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{RateLimit: config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1}}}

	rl := initializeRateLimiter(cfg, nil, testLogger)
	defer rl.Close()

	assert.True(t, rl.IsEnabled())
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, testLogger)
	defer srv.Close()

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestHandleShutdown(t *testing.T) {
	cronScheduler := cron.New()
	cronScheduler.Start()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	shutdownChan <- syscall.SIGINT
	serverErrors <- nil

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, cronScheduler, appResources{}, shutdownChan, serverErrors, testLogger)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
