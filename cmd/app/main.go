package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/auth"
	"github.com/jilaboon/rafit-sub000/internal/booking"
	"github.com/jilaboon/rafit-sub000/internal/classinstance"
	"github.com/jilaboon/rafit-sub000/internal/config"
	"github.com/jilaboon/rafit-sub000/internal/db"
	"github.com/jilaboon/rafit-sub000/internal/events"
	"github.com/jilaboon/rafit-sub000/internal/ledger"
	"github.com/jilaboon/rafit-sub000/internal/logger"
	"github.com/jilaboon/rafit-sub000/internal/membership"
	"github.com/jilaboon/rafit-sub000/internal/server"
	"github.com/jilaboon/rafit-sub000/internal/tenant"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	logger.Info("Starting rafit booking engine")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(context.Background(), cfg.DatabaseURL, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		PingTimeout:     5 * time.Second,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher, closeEvents := setupEvents(ctx, cfg)
	defer closeEvents()

	memberships := membership.NewRepository(database)
	classes := classinstance.NewRepository(database)
	bookings := booking.NewRepository(database)
	policies := tenant.NewRepository(database)
	policyLookup := tenant.NewPolicyLookup(policies, cfg.DefaultPolicy())
	balance := ledger.New(memberships, ledger.NewStore(database))

	bookingService := booking.NewService(
		bookings,
		classes,
		memberships,
		policyLookup,
		balance,
		auth.NewRoleAuthorizer(),
		db.NewTxManager(database),
		publisher,
	)

	srv := server.New(cfg, server.Handlers{
		Bookings: booking.NewHandler(bookingService),
		Classes:  classinstance.NewHandler(classinstance.NewService(classes)),
		Policies: tenant.NewHandler(policies, policyLookup),
		Ledger:   ledger.NewHandler(balance, memberships),
	}, database)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.WithError(err).Error("Server error")
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(map[string]interface{}{"error": err, "timeout": "30s"}).Error("Error during server shutdown")
	}

	logger.Info("Server stopped")
}

// setupEvents builds the publisher selected by EVENTS_BACKEND. For "relay" the
// service writes to Redis and a background relay forwards to RabbitMQ.
func setupEvents(ctx context.Context, cfg *config.Config) (events.Publisher, func()) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	newRedis := func() *events.RedisQueue {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, events will fail until it is", "addr", cfg.RedisAddr, "error", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		return events.NewRedisQueue(rdb, cfg.EventsQueue)
	}

	newAMQP := func() *events.AMQPPublisher {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to rabbitmq: %v", err)
		}
		closers = append(closers, func() { _ = p.Close() })
		return p
	}

	switch cfg.EventsBackend {
	case "redis":
		logger.Info("Publishing events to redis", "queue", cfg.EventsQueue)
		return newRedis(), closeAll
	case "amqp":
		logger.Info("Publishing events to rabbitmq", "exchange", cfg.EventsExchange)
		return newAMQP(), closeAll
	case "relay":
		queue := newRedis()
		go events.NewRelay(queue, newAMQP()).Start(ctx)
		logger.Info("Relaying events from redis to rabbitmq", "queue", cfg.EventsQueue, "exchange", cfg.EventsExchange)
		return queue, closeAll
	default:
		logger.Warn("Event publishing disabled")
		return events.Nop{}, closeAll
	}
}
