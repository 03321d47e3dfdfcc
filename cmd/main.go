package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/consumer"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/idempotency"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.Init(logging.Options{
		Component: cfg.App.Name,
		Level:     cfg.App.LogLevel,
		FilePath:  cfg.App.LogFile,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()

	tiers, err := cfg.DeliveryTiers()
	if err != nil {
		logger.Error("invalid delivery tiers", "err", err)
		os.Exit(1)
	}
	opts := []service.Option{service.WithDeliveryTiers(tiers)}

	var statusCache cache.StatusCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable, cache and idempotency will degrade", "addr", cfg.Redis.Addr, "err", err)
		}
		pingCancel()

		statusCache = cache.NewRedisCache(rdb, cfg.Cache.StatusTTL)
		opts = append(opts,
			service.WithStatusCache(statusCache),
			service.WithIdempotency(idempotency.NewRedisStore(rdb, cfg.Idempotency.TTL)),
		)
	} else {
		logger.Info("redis not configured, status cache and idempotency disabled")
	}

	svc := service.NewOrderService(store, identity.ContextProvider{}, opts...)

	// background workers; closed only after every Run has returned
	workers, workersCtx := errgroup.WithContext(ctx)
	var closers []func() error

	if len(cfg.Kafka.Brokers) > 0 {
		poller := publisher.NewOutboxPoller(store, publisher.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), publisher.Options{
			Tick:            cfg.Outbox.Tick,
			BatchSize:       cfg.Outbox.BatchSize,
			BreakerFailures: cfg.Outbox.BreakerFailures,
			BreakerTimeout:  cfg.Outbox.BreakerTimeout,
		})
		closers = append(closers, poller.Close)
		workers.Go(func() error {
			poller.Run(workersCtx)
			return nil
		})
		logger.Info("outbox poller started", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)

		if statusCache != nil {
			invalidator := consumer.NewStatusInvalidator(
				consumer.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID),
				statusCache,
			)
			closers = append(closers, invalidator.Close)
			workers.Go(func() error {
				invalidator.Run(workersCtx)
				return nil
			})
		}
	} else {
		logger.Info("kafka not configured, outbox events stay in the store")
	}

	auth := identity.NewAuthenticator(cfg.IdentitySettings())
	router := h.NewRouter(
		h.RouterConfig{RequestTimeout: cfg.HTTP.RequestTimeout},
		h.NewOrderHandler(svc, cfg.HTTP.RequestTimeout),
		h.NewAdminHandler(svc, auth, cfg.HTTP.RequestTimeout),
		auth,
	)

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("storefront starting", "addr", cfg.App.HTTPAddr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	if err := workers.Wait(); err != nil {
		logger.Error("background worker failed", "err", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("failed to close worker", "err", err)
		}
	}

	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	if cfg.Store.Backend == "memory" {
		return repository.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	store := repository.NewMongoStore(db)
	if err := store.RunMigrations(); err != nil {
		_ = store.Close(context.Background())
		return nil, err
	}
	return store, nil
}
