package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/donor-ledger/internal/adapters/cache"
	eventadapter "github.com/viralforge/donor-ledger/internal/adapters/events"
	httpadapter "github.com/viralforge/donor-ledger/internal/adapters/http"
	"github.com/viralforge/donor-ledger/internal/adapters/metrics"
	"github.com/viralforge/donor-ledger/internal/adapters/payments"
	"github.com/viralforge/donor-ledger/internal/adapters/security"
	"github.com/viralforge/donor-ledger/internal/application"
	"github.com/viralforge/donor-ledger/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	outbox     *eventadapter.OutboxWorker
	reconcile  *eventadapter.ReconcileWorker
	cleanupFn  func(context.Context)
}

func newLogger(cfg Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	return logger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	logger.Info("bootstrapping donor ledger",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage_driver", cfg.StorageDriver,
	)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(context.Context){store.close}
	cleanup := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}

	cache := store.cache
	idempotency := store.idempotency
	checks := []func(context.Context) error{store.ping}
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			cleanup(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func(context.Context) { _ = redisClient.Close() })
		checks = append(checks, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		cache = cacheadapter.NewRedisCache(redisClient, "ledger:")
		if cfg.IdempotencyBackend == IdempotencyRedis {
			idempotency = cacheadapter.NewRedisIdempotencyStore(redisClient)
		}
	}

	verifier, err := security.NewJWTVerifier(security.JWTVerifierConfig{
		HMACSecret:   cfg.JWTHMACSecret,
		PublicKeyPEM: cfg.JWTPublicKeyPEM,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
		Leeway:       30 * time.Second,
	})
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("init jwt verifier: %w", err)
	}

	var processor ports.PaymentProcessor
	if cfg.StripeSecretKey != "" {
		stripeProcessor, err := payments.NewStripeProcessor(cfg.StripeSecretKey, payments.BreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerOpenDuration,
		}, logger)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init stripe: %w", err)
		}
		processor = stripeProcessor
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; payment intents are unavailable")
	}

	ledgerMetrics := metrics.NewLedger()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:        cfg.ServiceID,
			IdempotencyTTL:     cfg.IdempotencyTTL,
			RecommendCacheTTL:  cfg.RecommendCacheTTL,
			KeepStatusOnRefund: !cfg.RecomputeStatusOnRefund,
			PaymentCurrency:    cfg.PaymentCurrency,
		},
		Campaigns:   store.campaigns,
		Donors:      store.donors,
		Outbox:      store.outbox,
		Transactor:  store.transactor,
		Idempotency: idempotency,
		Cache:       cache,
		Payments:    processor,
		Metrics:     ledgerMetrics,
	})

	ready := func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	handler := httpadapter.NewHandler(svc, verifier, ready)
	router := httpadapter.NewRouter(handler, httpadapter.RouterConfig{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		WriteRateLimit:  cfg.RateLimitWrites,
		RateLimitWindow: cfg.RateLimitWindow,
		Metrics:         ledgerMetrics.Handler(),
		Observer:        ledgerMetrics,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, eventadapter.DefaultTopics(cfg.KafkaTopicPrefix))
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		closers = append(closers, func(context.Context) { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}

	outbox := eventadapter.NewOutboxWorker(logger, store.outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		MaxRetries: cfg.OutboxMaxRetries,
	})
	reconcile := eventadapter.NewReconcileWorker(logger, svc, cfg.ReconcileInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		httpServer: httpServer,
		grpcServer: grpcServer,
		health:     healthSrv,
		outbox:     outbox,
		reconcile:  reconcile,
		cleanupFn:  cleanup,
	}, nil
}

// Service exposes the wired ledger service to operator tooling.
func (r *Runtime) Service() *application.Service {
	return r.service
}

func (r *Runtime) Close(ctx context.Context) {
	r.cleanupFn(ctx)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	r.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker drives the outbox publisher and the reconcile loop until the
// process is signalled.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		r.logger.Info("worker started", "worker", name)
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
			stop()
		}
	}
	wg.Add(2)
	go run("outbox", r.outbox.Run)
	go run("reconcile", r.reconcile.Run)
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return errors.Join(errs...)
}
