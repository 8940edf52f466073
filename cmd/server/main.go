package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/HarshalNinawe/technoupi2/internal/config"
	"github.com/HarshalNinawe/technoupi2/internal/db"
	"github.com/HarshalNinawe/technoupi2/internal/domain"
	"github.com/HarshalNinawe/technoupi2/internal/events"
	grpcserver "github.com/HarshalNinawe/technoupi2/internal/grpc"
	"github.com/HarshalNinawe/technoupi2/internal/httpapi"
	"github.com/HarshalNinawe/technoupi2/internal/idempotency"
	"github.com/HarshalNinawe/technoupi2/internal/logging"
	"github.com/HarshalNinawe/technoupi2/internal/memory"
	"github.com/HarshalNinawe/technoupi2/internal/metrics"
	"github.com/HarshalNinawe/technoupi2/internal/mongostore"
	"github.com/HarshalNinawe/technoupi2/internal/reconcile"
)

const shutdownTimeout = 15 * time.Second

// stores bundles the active store implementation.
type stores struct {
	accounts domain.AccountStore
	log      domain.TransactionLog
	pinger   domain.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ledger service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	collector := metrics.NewCollector()

	engineOpts := []domain.EngineOption{
		domain.WithLogger(logger.Named("engine")),
		domain.WithObserver(collector),
	}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger.Named("events"))
		if err != nil {
			return err
		}
		defer publisher.Close()
		engineOpts = append(engineOpts, domain.WithEventPublisher(publisher))
	} else {
		logger.Info("RABBITMQ_URL not set, transfer events disabled")
	}

	routerOpts := httpapi.RouterOptions{
		Logger:   logger.Named("http"),
		Metrics:  collector.Handler(),
		Observer: collector,
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		store := idempotency.NewStore(client, cfg.Redis.IdempotencyTTL)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		routerOpts.Idempotency = store
		logger.Info("idempotency keys enabled", zap.String("redis", cfg.Redis.Addr))
	} else {
		logger.Info("REDIS_ADDR not set, idempotency keys disabled")
	}

	engine := domain.NewTransferEngine(st.accounts, st.log, engineOpts...)
	handler := httpapi.NewHandler(
		domain.NewAccountService(st.accounts, logger.Named("accounts")),
		engine,
		domain.NewHistoryQuery(st.log),
		st.pinger,
		logger.Named("http"),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewRouter(handler, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := health.NewServer()
	grpcServer := grpcserver.NewServer(healthServer)
	watcher := grpcserver.NewHealthWatcher(healthServer, st.pinger, cfg.HealthCheck, logger.Named("health"))
	sweeper := reconcile.NewSweeper(st.log, collector, cfg.Reconcile.StaleAfter, cfg.Reconcile.Interval, logger.Named("reconcile"))

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPCPort, err)
	}

	errCh := make(chan error, 2)

	go watcher.Run(ctx)
	go sweeper.Run(ctx)

	go func() {
		logger.Info("gRPC health server starting", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", httpServer.Addr), zap.String("store", cfg.StoreDriver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error, shutting down", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")

	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database connection pool initialized")

		tm := db.NewTransactionManager(pool.Pool, logger.Named("db"))
		return &stores{
			accounts: db.NewAccountRepository(pool.Pool, cfg.StoreTimeout),
			log:      db.NewTransferRepository(pool.Pool, tm, cfg.StoreTimeout),
			pinger:   pool,
			close:    pool.Close,
		}, nil

	case config.StoreDriverMongo:
		client, err := mongostore.NewClient(ctx, mongostore.Config{
			URI:                    cfg.Mongo.URI,
			Database:               cfg.Mongo.Database,
			MaxPoolSize:            cfg.Mongo.MaxPoolSize,
			ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
			Timeout:                cfg.StoreTimeout,
		}, logger.Named("mongo"))
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, err
		}
		return &stores{
			accounts: client.Accounts(),
			log:      client.Transfers(),
			pinger:   client,
			close:    func() { _ = client.Close(context.Background()) },
		}, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		accounts := memory.NewAccountRepository()
		return &stores{
			accounts: accounts,
			log:      memory.NewTransferRepository(),
			pinger:   accounts,
			close:    func() {},
		}, nil
	}
}
