// Package app wires the storefront API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Catalog, optionally behind Redis.
	var catalogSrc cache.Backend = catalogRepo
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		healthSvc.Add(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		catalogSrc = cache.NewCatalog(rdb, catalogRepo, cfg.Redis.CatalogTTL)
		lg.Info("Catalog cache enabled", zap.Duration("ttl", cfg.Redis.CatalogTTL))
	}

	// Admin notifications.
	notifier, closeNotifier, err := newNotifier(lg, cfg, userRepo)
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}
	defer closeNotifier()

	// Domain services.
	orderSvc, err := order.NewService(orderRepo, notifier, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	defer func() { _ = orderSvc.Close() }()

	sessions := checkout.NewStore(cfg.Checkout.SessionTTL)
	if err := sessions.Instrument(m.MeterProvider()); err != nil {
		return errors.Wrap(err, "instrument checkout sessions")
	}
	sessions.StartSweeper(ctx, cfg.Checkout.SweepInterval)

	checkoutSvc := checkout.NewService(
		productRepo,
		catalogSrc,
		orderSvc,
		user.ContextProvider{},
		sessions,
		m.TracerProvider(),
		checkout.Config{AutoSelectZone: cfg.Checkout.AutoSelectZone},
	)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		APIKeyPepper: []byte(cfg.APIKeyPepper),
	}, handler.Deps{
		Products:  productRepo,
		Catalog:   catalogSrc,
		Discounts: catalogSrc,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Users:     userRepo,
		APIKeys:   apikeyRepo,
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey, handler.HeaderUserID, httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	lg.Info("Server stopped", zap.Int("abandoned_sessions", sessions.Len()))
	return nil
}

// newNotifier connects the configured brokers. With none configured admin
// notifications are disabled and the returned notifier is nil.
func newNotifier(lg *zap.Logger, cfg *Config, users user.Repository) (order.Notifier, func(), error) {
	var (
		pubs    notify.Fanout
		closers []func() error
	)
	closeAll := func() {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		if err != nil {
			lg.Warn("Close notification brokers", zap.Error(err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		conn, ch, err := notify.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, conn.Close, ch.Close)
		pubs = append(pubs, notify.NewRabbitPublisher(ch, cfg.RabbitMQ.Exchange))
		lg.Info("RabbitMQ notifications enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, producer.Close)
		pubs = append(pubs, notify.NewKafkaPublisher(producer, cfg.Kafka.Topic))
		lg.Info("Kafka notifications enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	if len(pubs) == 0 {
		lg.Warn("No notification broker configured, admin notifications disabled")
		return nil, closeAll, nil
	}
	return notify.NewAdminNotifier(users, pubs), closeAll, nil
}
